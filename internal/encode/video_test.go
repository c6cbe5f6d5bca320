package encode

import (
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"

	"mrc2movie/internal/logger"
)

func TestSequenceForward(t *testing.T) {
	got := Sequence(4, PlaybackForward)
	want := []int{0, 1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSequenceForwardBackward(t *testing.T) {
	// [A B C D] must emit [A B C D C B]: 6 frames, endpoints not doubled.
	got := Sequence(4, PlaybackForwardBackward)
	want := []int{0, 1, 2, 3, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("got %d frames %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSequenceDegenerateDepths(t *testing.T) {
	if got := Sequence(1, PlaybackForwardBackward); len(got) != 1 || got[0] != 0 {
		t.Errorf("depth 1 forward-backward = %v, want [0]", got)
	}
	if got := Sequence(1, PlaybackForward); len(got) != 1 {
		t.Errorf("depth 1 forward = %v, want [0]", got)
	}
	if got := Sequence(2, PlaybackForwardBackward); len(got) != 2 {
		t.Errorf("depth 2 forward-backward = %v, want [0 1]", got)
	}
}

func TestTargetSize(t *testing.T) {
	cases := []struct {
		name         string
		w, h, maxDim int
		wantW, wantH int
	}{
		{"downscale landscape", 2000, 1000, 1000, 1000, 500},
		{"downscale portrait", 1000, 2000, 500, 250, 500},
		{"never upscale", 640, 480, 1024, 640, 480},
		{"exact fit", 1024, 768, 1024, 1024, 768},
		{"unset keeps native", 3000, 2000, 0, 3000, 2000},
		{"extreme aspect clamps to 1", 1, 4000, 100, 1, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotW, gotH := TargetSize(tc.w, tc.h, tc.maxDim)
			if gotW != tc.wantW || gotH != tc.wantH {
				t.Errorf("TargetSize(%d, %d, %d) = (%d, %d), want (%d, %d)",
					tc.w, tc.h, tc.maxDim, gotW, gotH, tc.wantW, tc.wantH)
			}
		})
	}
}

func makeFrames(t *testing.T, n, side int) []gocv.Mat {
	t.Helper()
	frames := make([]gocv.Mat, n)
	for i := range frames {
		data := make([]byte, side*side)
		for j := range data {
			data[j] = uint8((i*40 + j) % 256)
		}
		m, err := gocv.NewMatFromBytes(side, side, gocv.MatTypeCV8UC1, data)
		if err != nil {
			t.Fatalf("NewMatFromBytes: %v", err)
		}
		frames[i] = m
	}
	return frames
}

func closeFrames(frames []gocv.Mat) {
	for i := range frames {
		frames[i].Close()
	}
}

func TestWriteVideo(t *testing.T) {
	frames := makeFrames(t, 4, 64)
	defer closeFrames(frames)

	path := filepath.Join(t.TempDir(), "out.avi")
	spec := OutputSpec{FPS: 10, Codec: "MJPG", Playback: PlaybackForwardBackward}
	if err := WriteVideo(path, frames, spec, logger.Nop()); err != nil {
		t.Fatalf("WriteVideo: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("output video is empty")
	}
}

func TestWriteVideoResizes(t *testing.T) {
	frames := makeFrames(t, 2, 128)
	defer closeFrames(frames)

	path := filepath.Join(t.TempDir(), "small.avi")
	spec := OutputSpec{FPS: 5, Codec: "MJPG", Playback: PlaybackForward, MaxDimension: 64}
	if err := WriteVideo(path, frames, spec, logger.Nop()); err != nil {
		t.Fatalf("WriteVideo: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestWriteVideoNoFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.avi")
	err := WriteVideo(path, nil, OutputSpec{FPS: 10, Codec: "MJPG"}, logger.Nop())
	if err == nil {
		t.Fatal("expected error for empty frame sequence")
	}
}
