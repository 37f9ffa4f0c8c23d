package camera

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/at-wat/ebml-go"
	"github.com/at-wat/ebml-go/webm"

	"webcam-fingerprint/internal/domain"
)

// 320x240 keyframe: frame tag, start code, then 14-bit sizes
var vp8Keyframe = []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a, 0x40, 0x01, 0xf0, 0x00, 0xaa, 0xbb}

var vp8Interframe = []byte{0x31, 0x01, 0x00, 0xcc, 0xdd}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type parsedWebM struct {
	Header  webm.EBMLHeader `ebml:"EBML"`
	Segment parsedSegment   `ebml:"Segment"`
}

type parsedSegment struct {
	Info    webmInfo          `ebml:"Info"`
	Tracks  webmTracks        `ebml:"Tracks"`
	Cluster []webmClusterBody `ebml:"Cluster"`
}

func TestVP8FrameSize(t *testing.T) {
	w, h, err := vp8FrameSize(vp8Keyframe)
	if err != nil {
		t.Fatalf("vp8FrameSize: %v", err)
	}
	if w != 320 || h != 240 {
		t.Errorf("size = %dx%d, want 320x240", w, h)
	}

	if _, _, err := vp8FrameSize(vp8Keyframe[:6]); !errors.Is(err, errShortVP8Frame) {
		t.Errorf("short frame err = %v", err)
	}
	if !isVP8Keyframe(vp8Keyframe) || isVP8Keyframe(vp8Interframe) || isVP8Keyframe(nil) {
		t.Error("keyframe bit misread")
	}
}

func TestWebMMuxer_DropsFramesBeforeKeyframe(t *testing.T) {
	clock := &fakeClock{now: time.Unix(100, 0)}
	muxer := newWebMMuxer(clock.Now)

	out, err := muxer.Mux(vp8Interframe)
	if err != nil || out != nil {
		t.Fatalf("Mux(interframe) = %v, %v; want nothing", out, err)
	}

	out, err = muxer.Mux(vp8Keyframe)
	if err != nil {
		t.Fatalf("Mux(keyframe): %v", err)
	}
	if !bytes.HasPrefix(out, []byte{0x1a, 0x45, 0xdf, 0xa3}) {
		t.Errorf("stream does not start with the EBML magic: % x", out[:4])
	}
}

func TestWebMMuxer_ChunksFormOneFile(t *testing.T) {
	clock := &fakeClock{now: time.Unix(100, 0)}
	muxer := newWebMMuxer(clock.Now)

	var file bytes.Buffer
	for i, frame := range [][]byte{vp8Keyframe, vp8Interframe, vp8Interframe} {
		if i > 0 {
			clock.advance(40 * time.Millisecond)
		}
		out, err := muxer.Mux(frame)
		if err != nil {
			t.Fatalf("Mux frame %d: %v", i, err)
		}
		file.Write(out)
	}

	var parsed parsedWebM
	if err := ebml.Unmarshal(bytes.NewReader(file.Bytes()), &parsed); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if parsed.Header.DocType != "webm" {
		t.Errorf("doc type = %q, want webm", parsed.Header.DocType)
	}
	if parsed.Segment.Info.TimecodeScale != uint64(time.Millisecond) {
		t.Errorf("timecode scale = %d", parsed.Segment.Info.TimecodeScale)
	}
	tracks := parsed.Segment.Tracks.TrackEntry
	if len(tracks) != 1 {
		t.Fatalf("tracks = %d, want 1", len(tracks))
	}
	if tracks[0].CodecID != "V_VP8" || tracks[0].Video == nil ||
		tracks[0].Video.PixelWidth != 320 || tracks[0].Video.PixelHeight != 240 {
		t.Errorf("unexpected track %+v", tracks[0])
	}

	clusters := parsed.Segment.Cluster
	if len(clusters) != 3 {
		t.Fatalf("clusters = %d, want 3", len(clusters))
	}
	for i, want := range []struct {
		timecode uint64
		keyframe bool
		data     []byte
	}{
		{0, true, vp8Keyframe},
		{40, false, vp8Interframe},
		{80, false, vp8Interframe},
	} {
		c := clusters[i]
		if c.Timecode != want.timecode {
			t.Errorf("cluster %d timecode = %d, want %d", i, c.Timecode, want.timecode)
		}
		if len(c.SimpleBlock) != 1 {
			t.Fatalf("cluster %d blocks = %d, want 1", i, len(c.SimpleBlock))
		}
		block := c.SimpleBlock[0]
		if block.TrackNumber != videoTrackNumber || block.Keyframe != want.keyframe {
			t.Errorf("cluster %d block track=%d keyframe=%v", i, block.TrackNumber, block.Keyframe)
		}
		if len(block.Data) != 1 || !bytes.Equal(block.Data[0], want.data) {
			t.Errorf("cluster %d block data = % x", i, block.Data)
		}
	}
}

type sliceReader struct {
	frames [][]byte
	closed bool
}

func (r *sliceReader) Read() (*domain.VideoFrame, error) {
	if len(r.frames) == 0 {
		return nil, io.EOF
	}
	f := r.frames[0]
	r.frames = r.frames[1:]
	if f == nil {
		return nil, nil
	}
	return &domain.VideoFrame{Data: f, Size: len(f)}, nil
}

func (r *sliceReader) Close() error {
	r.closed = true
	return nil
}

func TestWebMReader_WrapsEncoderOutput(t *testing.T) {
	clock := &fakeClock{now: time.Unix(100, 0)}
	encoded := &sliceReader{frames: [][]byte{vp8Interframe, nil, vp8Keyframe, vp8Interframe}}
	reader := newWebMReader(encoded, clock.Now)

	var chunks [][]byte
	for {
		frame, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if frame != nil {
			chunks = append(chunks, frame.Data)
		}
	}

	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2 (leading interframe and empty read skipped)", len(chunks))
	}
	if !bytes.HasPrefix(chunks[0], []byte{0x1a, 0x45, 0xdf, 0xa3}) {
		t.Error("first chunk must carry the header")
	}
	if bytes.HasPrefix(chunks[1], []byte{0x1a, 0x45, 0xdf, 0xa3}) {
		t.Error("header written twice")
	}

	if err := reader.Close(); err != nil || !encoded.closed {
		t.Errorf("Close = %v, encoder closed = %v", err, encoded.closed)
	}
}
