// Package wire encodes the two payloads that leave or enter the process: body packets
// sent by the tracking master and cooked channel frames pushed to monitor clients.
//
// Both use the protobuf wire format so that any protobuf runtime can read them. The
// equivalent schema is:
//
//	message Joint {
//	  uint32 slot = 1;
//	  float px = 2; float py = 3; float pz = 4;
//	  float ox = 5; float oy = 6; float oz = 7; float ow = 8;
//	  float position_confidence = 9;
//	  float orientation_confidence = 10;
//	}
//	message Body { uint64 uid = 1; repeated Joint joints = 2; }
//	message BodyPacket { uint64 seq = 1; repeated Body bodies = 2; }
//
//	message ChannelFrame {
//	  uint64 seq = 1;
//	  int64 unix_nanos = 2;
//	  repeated string names = 3;
//	  repeated float values = 4 [packed = true];
//	  uint32 bodies = 5;
//	}
package wire
