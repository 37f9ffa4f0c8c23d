package camera

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/at-wat/ebml-go"
	"github.com/at-wat/ebml-go/webm"

	"webcam-fingerprint/internal/domain"
)

const (
	vp8CodecID       = "V_VP8"
	videoTrackNumber = 1
	videoTrackType   = 1
)

var errShortVP8Frame = errors.New("vp8 keyframe too short")

// The segment has unknown size, so the stream needs no trailer and every
// prefix of it is a playable file.
type webmHeader struct {
	Header  *webm.EBMLHeader `ebml:"EBML"`
	Segment webmSegmentHead  `ebml:"Segment,size=unknown"`
}

type webmSegmentHead struct {
	Info   webmInfo   `ebml:"Info"`
	Tracks webmTracks `ebml:"Tracks"`
}

type webmInfo struct {
	TimecodeScale uint64 `ebml:"TimecodeScale"`
	MuxingApp     string `ebml:"MuxingApp"`
	WritingApp    string `ebml:"WritingApp"`
}

type webmTracks struct {
	TrackEntry []webm.TrackEntry `ebml:"TrackEntry"`
}

type webmCluster struct {
	Cluster webmClusterBody `ebml:"Cluster"`
}

type webmClusterBody struct {
	Timecode    uint64       `ebml:"Timecode"`
	SimpleBlock []ebml.Block `ebml:"SimpleBlock"`
}

// webmMuxer writes VP8 frames as a WebM stream, one cluster per frame.
type webmMuxer struct {
	now     func() time.Time
	start   time.Time
	started bool
}

func newWebMMuxer(now func() time.Time) *webmMuxer {
	return &webmMuxer{now: now}
}

// Mux returns the container bytes for one VP8 frame. The first keyframe is
// preceded by the file header. Frames before it cannot be decoded and are
// dropped (nil, nil).
func (m *webmMuxer) Mux(frame []byte) ([]byte, error) {
	keyframe := isVP8Keyframe(frame)
	var buf bytes.Buffer

	if !m.started {
		if !keyframe {
			return nil, nil
		}
		width, height, err := vp8FrameSize(frame)
		if err != nil {
			return nil, err
		}
		if err := ebml.Marshal(newWebMHeader(width, height), &buf); err != nil {
			return nil, fmt.Errorf("write webm header: %w", err)
		}
		m.start = m.now()
		m.started = true
	}

	cluster := &webmCluster{Cluster: webmClusterBody{
		Timecode: uint64(m.now().Sub(m.start) / time.Millisecond),
		SimpleBlock: []ebml.Block{{
			TrackNumber: videoTrackNumber,
			Keyframe:    keyframe,
			Data:        [][]byte{frame},
		}},
	}}
	if err := ebml.Marshal(cluster, &buf); err != nil {
		return nil, fmt.Errorf("write webm cluster: %w", err)
	}
	return buf.Bytes(), nil
}

func newWebMHeader(width, height int) *webmHeader {
	return &webmHeader{
		Header: webm.DefaultEBMLHeader,
		Segment: webmSegmentHead{
			Info: webmInfo{
				TimecodeScale: uint64(time.Millisecond),
				MuxingApp:     "webcam-panel",
				WritingApp:    "webcam-panel",
			},
			Tracks: webmTracks{TrackEntry: []webm.TrackEntry{{
				Name:        "Video",
				TrackNumber: videoTrackNumber,
				TrackUID:    videoTrackNumber,
				CodecID:     vp8CodecID,
				TrackType:   videoTrackType,
				Video: &webm.Video{
					PixelWidth:  uint64(width),
					PixelHeight: uint64(height),
				},
			}}},
		},
	}
}

// isVP8Keyframe reads the frame type bit of the VP8 frame tag (RFC 6386 9.1).
func isVP8Keyframe(frame []byte) bool {
	return len(frame) > 0 && frame[0]&0x01 == 0
}

// vp8FrameSize reads the dimensions following the keyframe start code.
func vp8FrameSize(frame []byte) (int, int, error) {
	if len(frame) < 10 || frame[3] != 0x9d || frame[4] != 0x01 || frame[5] != 0x2a {
		return 0, 0, errShortVP8Frame
	}
	width := binary.LittleEndian.Uint16(frame[6:8]) & 0x3fff
	height := binary.LittleEndian.Uint16(frame[8:10]) & 0x3fff
	return int(width), int(height), nil
}

// webmReader turns VP8 encoder output into WebM chunks
type webmReader struct {
	encoded domain.VideoReader
	muxer   *webmMuxer
}

func newWebMReader(encoded domain.VideoReader, now func() time.Time) *webmReader {
	return &webmReader{encoded: encoded, muxer: newWebMMuxer(now)}
}

func (r *webmReader) Read() (*domain.VideoFrame, error) {
	frame, err := r.encoded.Read()
	if err != nil || frame == nil {
		return nil, err
	}

	data, err := r.muxer.Mux(frame.Data)
	if err != nil || data == nil {
		return nil, err
	}
	return &domain.VideoFrame{Data: data, Size: len(data), Number: frame.Number}, nil
}

func (r *webmReader) Close() error {
	return r.encoded.Close()
}
