// Command feedsim plays a tracking master: it sends synthetic walking skeletons to a
// receiver as body packets.
package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dj-oyu/pb-receiver/internal/logger"
	"github.com/dj-oyu/pb-receiver/pkg/types"
	"github.com/dj-oyu/pb-receiver/pkg/wire"
)

type options struct {
	target   string
	rate     int
	bodies   int
	churn    time.Duration
	dropConf float64
	logLevel string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:          "feedsim",
		Short:        "Send synthetic body packets to a receiver",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := logger.ParseLevel(opts.logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			logger.Init(level, os.Stderr, true)
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.target, "target", "t", "127.0.0.1:5005", "Receiver feed address")
	f.IntVar(&opts.rate, "rate", 30, "Packets per second")
	f.IntVarP(&opts.bodies, "bodies", "n", 2, "Number of bodies kept in view")
	f.DurationVar(&opts.churn, "churn", 10*time.Second, "Replace one body this often (0 disables)")
	f.Float64Var(&opts.dropConf, "drop-confidence", 0.05, "Probability that a joint is sent with zero confidence")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error, silent)")

	return cmd
}

// walker is one simulated person walking a circle.
type walker struct {
	uid    types.BodyUID
	radius float64
	speed  float64
	phase  float64
}

func newWalker(rng *rand.Rand) *walker {
	id := uuid.New()
	return &walker{
		uid:    types.BodyUID(binary.BigEndian.Uint64(id[:8])),
		radius: 0.5 + rng.Float64()*2,
		speed:  0.3 + rng.Float64()*0.7,
		phase:  rng.Float64() * 2 * math.Pi,
	}
}

// jointOffsets is a standing skeleton relative to the torso, in meters.
var jointOffsets = [types.JointCount]types.Vec3{
	types.JointHead:          {X: 0, Y: 0.65, Z: 0},
	types.JointNeck:          {X: 0, Y: 0.45, Z: 0},
	types.JointLeftShoulder:  {X: -0.2, Y: 0.42, Z: 0},
	types.JointRightShoulder: {X: 0.2, Y: 0.42, Z: 0},
	types.JointLeftElbow:     {X: -0.28, Y: 0.15, Z: 0},
	types.JointRightElbow:    {X: 0.28, Y: 0.15, Z: 0},
	types.JointLeftHand:      {X: -0.3, Y: -0.12, Z: 0.05},
	types.JointRightHand:     {X: 0.3, Y: -0.12, Z: 0.05},
	types.JointTorso:         {X: 0, Y: 0, Z: 0},
	types.JointLeftHip:       {X: -0.12, Y: -0.2, Z: 0},
	types.JointRightHip:      {X: 0.12, Y: -0.2, Z: 0},
	types.JointLeftKnee:      {X: -0.13, Y: -0.62, Z: 0},
	types.JointRightKnee:     {X: 0.13, Y: -0.62, Z: 0},
	types.JointLeftFoot:      {X: -0.14, Y: -1.02, Z: 0},
	types.JointRightFoot:     {X: 0.14, Y: -1.02, Z: 0},
}

func (w *walker) body(t float64, rng *rand.Rand, dropConf float64) *types.Body {
	angle := w.phase + t*w.speed/w.radius
	cx := float32(w.radius * math.Cos(angle))
	cz := float32(2.5 + w.radius*math.Sin(angle))
	heading := angle + math.Pi/2
	swing := float32(0.15 * math.Sin(t*6))

	// Rotation about Y by heading as a quaternion.
	half := heading / 2
	orient := types.Quaternion{Y: float32(math.Sin(half)), W: float32(math.Cos(half))}

	b := &types.Body{UID: w.uid}
	for slot, off := range jointOffsets {
		z := off.Z
		switch slot {
		case types.JointLeftHand, types.JointRightFoot:
			z += swing
		case types.JointRightHand, types.JointLeftFoot:
			z -= swing
		}
		conf := float32(0.6 + rng.Float64()*0.4)
		if rng.Float64() < dropConf {
			conf = 0
		}
		b.Joints[slot] = types.Joint{
			Position:              types.Vec3{X: cx + off.X, Y: 1.0 + off.Y, Z: cz + z},
			Orientation:           orient,
			PositionConfidence:    conf,
			OrientationConfidence: conf * 0.8,
		}
	}
	return b
}

func run(ctx context.Context, opts options) error {
	if opts.rate <= 0 {
		return fmt.Errorf("rate must be positive")
	}

	conn, err := net.Dial("udp", opts.target)
	if err != nil {
		return fmt.Errorf("dial %s: %w", opts.target, err)
	}
	defer conn.Close()

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	walkers := make([]*walker, opts.bodies)
	for i := range walkers {
		walkers[i] = newWalker(rng)
	}

	logger.Info("FeedSim", "Sending %d bodies to %s at %d Hz", opts.bodies, opts.target, opts.rate)

	ticker := time.NewTicker(time.Second / time.Duration(opts.rate))
	defer ticker.Stop()

	var churn <-chan time.Time
	if opts.churn > 0 && opts.bodies > 0 {
		churnTicker := time.NewTicker(opts.churn)
		defer churnTicker.Stop()
		churn = churnTicker.C
	}

	start := time.Now()
	var seq uint64
	var buf []byte

	for {
		select {
		case <-ctx.Done():
			logger.Info("FeedSim", "Stopped after %d packets", seq)
			return nil

		case <-churn:
			i := rng.IntN(len(walkers))
			old := walkers[i].uid
			walkers[i] = newWalker(rng)
			logger.Info("FeedSim", "Body %d left, body %d entered", old, walkers[i].uid)

		case now := <-ticker.C:
			seq++
			t := now.Sub(start).Seconds()
			pkt := &wire.BodyPacket{Seq: seq, Bodies: make([]*types.Body, len(walkers))}
			for i, w := range walkers {
				pkt.Bodies[i] = w.body(t, rng, opts.dropConf)
			}

			buf = wire.MarshalBodyPacket(buf[:0], pkt)
			if _, err := conn.Write(buf); err != nil {
				logger.Warn("FeedSim", "Send failed: %v", err)
				continue
			}
			if seq%uint64(opts.rate*10) == 0 {
				logger.Debug("FeedSim", "Sent %d packets", seq)
			}
		}
	}
}
