package present

import (
	"context"
	"testing"
	"time"

	"github.com/gogpu/gfx"
)

func TestFrameQueueLastWriteWins(t *testing.T) {
	q := NewFrameQueue()
	f1 := gfx.NewFrame(1, gfx.MonoStereo(), nil)
	f2 := gfx.NewFrame(2, gfx.MonoStereo(), nil)

	if dropped := q.Submit(f1); dropped != nil {
		t.Fatalf("first Submit dropped frame %d", dropped.Index())
	}
	if dropped := q.Submit(f2); dropped != f1 {
		t.Fatalf("second Submit dropped %v, want frame 1", dropped)
	}
	if !q.Pending() {
		t.Fatal("Pending() = false after Submit")
	}
	if got := q.Take(); got != f2 {
		t.Fatalf("Take() = %v, want frame 2", got)
	}
	if got := q.Take(); got != nil {
		t.Fatalf("second Take() = frame %d, want nil", got.Index())
	}
	if q.Submit(nil) != nil || q.Pending() {
		t.Fatal("Submit(nil) changed the queue")
	}
}

func TestFrameQueueWait(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		q := NewFrameQueue()
		start := time.Now()
		if f := q.Wait(background, 5*time.Millisecond); f != nil {
			t.Fatalf("Wait() = frame %d, want nil", f.Index())
		}
		if time.Since(start) < 5*time.Millisecond {
			t.Error("Wait returned before the timeout")
		}
	})

	t.Run("zero timeout", func(t *testing.T) {
		q := NewFrameQueue()
		if f := q.Wait(background, 0); f != nil {
			t.Fatal("Wait(0) on an empty queue returned a frame")
		}
	})

	t.Run("wakes on submit", func(t *testing.T) {
		q := NewFrameQueue()
		f := gfx.NewFrame(3, gfx.MonoStereo(), nil)
		go func() {
			time.Sleep(time.Millisecond)
			q.Submit(f)
		}()
		if got := q.Wait(background, 5*time.Second); got != f {
			t.Fatalf("Wait() = %v, want submitted frame", got)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		q := NewFrameQueue()
		ctx, cancel := context.WithCancel(background)
		cancel()
		if f := q.Wait(ctx, 5*time.Second); f != nil {
			t.Fatal("Wait on a canceled context returned a frame")
		}
	})

	t.Run("stale token", func(t *testing.T) {
		q := NewFrameQueue()
		q.Submit(gfx.NewFrame(4, gfx.MonoStereo(), nil))
		q.Take()
		if f := q.Wait(background, 5*time.Millisecond); f != nil {
			t.Fatal("Wait returned a frame that was already taken")
		}
	})
}

func TestStageString(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageIdle, "Idle"},
		{StageAcquireSurface, "AcquireSurface"},
		{StageWaitForFrame, "WaitForFrame"},
		{StageSkip, "Skip"},
		{StageExecute, "Execute"},
		{StageCompositeOverlay, "CompositeOverlay"},
		{StageCompositePointer, "CompositePointer"},
		{StageCompositeExtra, "CompositeExtra"},
		{StagePresentSurface, "PresentSurface"},
		{Stage(-1), "Unknown"},
		{Stage(100), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.stage.String(); got != tt.want {
			t.Errorf("Stage(%d).String() = %q, want %q", int32(tt.stage), got, tt.want)
		}
	}
}
