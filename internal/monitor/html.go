package monitor

const indexHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>pb-receiver Monitor</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { background:#121218; color:#e6e6e6; font-family:system-ui,sans-serif; margin:0; }
        .app { max-width:1200px; margin:0 auto; padding:16px; }
        .header { display:flex; justify-content:space-between; align-items:center; }
        .title { font-size:20px; font-weight:600; }
        .badge { padding:4px 10px; border-radius:12px; font-size:12px; background:#333; }
        .badge.ok { background:#1f6f3f; }
        .badge.warn { background:#7a5a12; }
        .grid { display:grid; grid-template-columns:2fr 1fr; gap:16px; margin-top:16px; }
        .panel { background:#1c1c26; border-radius:8px; padding:12px; }
        .panel h2 { font-size:15px; margin:0 0 8px; }
        .stat-grid { display:grid; grid-template-columns:1fr 1fr; gap:8px; }
        .stat-label { display:block; font-size:11px; color:#999; }
        .stat-value { font-size:18px; }
        table { width:100%; border-collapse:collapse; font-family:monospace; font-size:12px; }
        td { padding:1px 6px; border-bottom:1px solid #2a2a36; }
        td.v { text-align:right; }
        .channels { max-height:420px; overflow-y:auto; }
        button { background:#2d2d3d; color:#e6e6e6; border:1px solid #444; border-radius:4px; padding:4px 10px; cursor:pointer; }
        label { display:block; margin:4px 0; }
        img { width:100%; border-radius:4px; }
    </style>
</head>
<body>
    <div class="app">
        <div class="header">
            <div class="title">pb-receiver Monitor</div>
            <span class="badge" id="status-badge">Waiting for data...</span>
        </div>

        <div class="grid">
            <div class="panel">
                <h2>Preview</h2>
                <img id="preview" alt="Skeleton preview" src="/api/preview.png">
            </div>

            <div class="panel">
                <h2>Status</h2>
                <div class="stat-grid">
                    <div><span class="stat-label">Bodies</span><span class="stat-value" id="bodies">--</span></div>
                    <div><span class="stat-label">Channels</span><span class="stat-value" id="channels">--</span></div>
                    <div><span class="stat-label">Frames</span><span class="stat-value" id="frames">--</span></div>
                    <div><span class="stat-label">Registry</span><span class="stat-value" id="registry">--</span></div>
                </div>

                <h2 style="margin-top:16px;">Outputs</h2>
                <label><input type="checkbox" id="positions"> Positions</label>
                <label><input type="checkbox" id="orientations"> Orientations</label>
                <label><input type="checkbox" id="confidences"> Confidences</label>
                <button type="button" id="btn-reset">Reset indexes</button>

                <h2 style="margin-top:16px;">Recording</h2>
                <button type="button" id="btn-record">Start</button>
                <span id="record-status"></span>
            </div>

            <div class="panel" style="grid-column: span 2;">
                <h2>Channels</h2>
                <div class="channels"><table id="channel-table"></table></div>
            </div>
        </div>
    </div>

    <script>
    const $ = (id) => document.getElementById(id);
    let recording = false;

    async function refreshStatus() {
        const res = await fetch('/api/status');
        const s = await res.json();
        const badge = $('status-badge');
        if (s.warning) {
            badge.textContent = s.warning;
            badge.className = 'badge warn';
        } else {
            badge.textContent = 'Connected ' + (s.feed.source || '');
            badge.className = 'badge ok';
        }
        $('bodies').textContent = s.cook.bodies;
        $('channels').textContent = s.cook.channels;
        $('frames').textContent = s.cook.frames_cooked;
        $('registry').textContent = s.cook.registry_size;
        $('positions').checked = s.outputs.positions;
        $('orientations').checked = s.outputs.orientations;
        $('confidences').checked = s.outputs.confidences;
        recording = !!(s.recording && s.recording.recording);
        $('btn-record').textContent = recording ? 'Stop' : 'Start';
        $('record-status').textContent = recording ? s.recording.frame_count + ' frames' : '';
    }

    function renderChannels(frame) {
        const rows = frame.names.map((name, i) => {
            const v = frame.values[i];
            return '<tr><td>' + i + '</td><td>' + name + '</td><td class="v">' +
                (v === null ? 'NaN' : v.toFixed(4)) + '</td></tr>';
        });
        $('channel-table').innerHTML = rows.join('');
    }

    for (const key of ['positions', 'orientations', 'confidences']) {
        $(key).addEventListener('change', async (ev) => {
            await fetch('/api/params', {
                method: 'POST',
                headers: {'Content-Type': 'application/json'},
                body: JSON.stringify({[key]: ev.target.checked}),
            });
        });
    }

    $('btn-reset').addEventListener('click', () => fetch('/api/reset', {method: 'POST'}));
    $('btn-record').addEventListener('click', async () => {
        await fetch(recording ? '/api/recording/stop' : '/api/recording/start', {method: 'POST'});
        refreshStatus();
    });

    const source = new EventSource('/api/channels/stream');
    let pending = null;
    source.onmessage = (ev) => { pending = JSON.parse(ev.data); };
    setInterval(() => {
        if (pending) {
            renderChannels(pending);
            pending = null;
        }
    }, 200);

    setInterval(() => { $('preview').src = '/api/preview.png?t=' + Date.now(); }, 500);
    setInterval(refreshStatus, 1000);
    refreshStatus();
    </script>
</body>
</html>
`
