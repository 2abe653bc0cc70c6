package present

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/resource"
)

func TestNewTransferWorkerValidates(t *testing.T) {
	tests := []struct {
		name    string
		cfg     gfx.TransferConfig
		wantErr bool
	}{
		{"zero page", gfx.TransferConfig{PageSize: 0, BudgetPerTick: 8}, true},
		{"budget below page", gfx.TransferConfig{PageSize: 16, BudgetPerTick: 8}, true},
		{"budget equals page", gfx.TransferConfig{PageSize: 8, BudgetPerTick: 8}, false},
		{"defaults", gfx.DefaultConfig().Transfer, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTransferWorker(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewTransferWorker() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// runWorker runs w until the test ends.
func runWorker(t *testing.T, w *TransferWorker) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() = %v, want nil after cancel", err)
		}
	})
}

func TestTransferWorkerSpreadsOverTicks(t *testing.T) {
	w, err := NewTransferWorker(gfx.TransferConfig{PageSize: 4, BudgetPerTick: 8})
	if err != nil {
		t.Fatal(err)
	}
	tex := resource.NewTexture2D("big", gputypes.TextureFormatRGBA8Unorm, 4, 2, resource.DefaultSampler())
	data := make([]byte, 4*2*4)
	for i := range data {
		data[i] = byte(i)
	}

	ready := w.Enqueue(tex, [][]byte{data}, false)
	if again := w.Enqueue(tex, [][]byte{data}, false); again != ready {
		t.Error("enqueuing a texture in transfer started a second job")
	}
	if !w.Pending(tex) {
		t.Fatal("queued texture is not pending")
	}
	runWorker(t, w)

	staged := func() uint64 { return w.Stats().StagedBytes }
	waitFor(t, "first budget", func() bool { return staged() == 8 })
	time.Sleep(10 * time.Millisecond)
	if got := staged(); got != 8 {
		t.Fatalf("staged %d bytes without a tick, want the 8 byte budget", got)
	}

	for want := uint64(16); want <= 32; want += 8 {
		w.Tick()
		waitFor(t, "next budget", func() bool { return staged() == want })
	}
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("transfer never finished")
	}

	if !w.Pending(tex) {
		t.Error("finished texture stopped pending before Ready")
	}
	if got := w.Ready(); len(got) != 1 || got[0] != tex {
		t.Fatalf("Ready() = %v, want the texture", got)
	}
	if w.Pending(tex) {
		t.Error("texture still pending after Ready")
	}
	if !bytes.Equal(tex.Mip(0, 0), data) {
		t.Error("texture data differs from the enqueued bytes")
	}
	if st := w.Stats(); st.Completed != 1 || st.Failed != 0 || st.Queued != 0 {
		t.Errorf("Stats() = %+v, want one completed job", st)
	}
}

func TestTransferWorkerGeneratesMips(t *testing.T) {
	w, err := NewTransferWorker(gfx.TransferConfig{PageSize: 64, BudgetPerTick: 64})
	if err != nil {
		t.Fatal(err)
	}
	tex := resource.NewTexture2D("mipped", gputypes.TextureFormatRGBA8Unorm, 4, 4, resource.DefaultSampler())
	runWorker(t, w)

	<-w.Enqueue(tex, [][]byte{bytes.Repeat([]byte{255}, 4*4*4)}, true)
	if got := tex.MipLevels(); got != 3 {
		t.Errorf("MipLevels() = %d, want 3", got)
	}
	if got := tex.Mip(2, 0); len(got) != 4 || got[0] != 255 {
		t.Errorf("last mip = %v, want one white pixel", got)
	}
}

func TestTransferWorkerReleasesFailedTexture(t *testing.T) {
	w, err := NewTransferWorker(gfx.TransferConfig{PageSize: 64, BudgetPerTick: 64})
	if err != nil {
		t.Fatal(err)
	}
	tex := resource.NewTexture2D("two_layers", gputypes.TextureFormatRGBA8Unorm, 1, 1, resource.DefaultSampler())
	runWorker(t, w)

	// A 2D texture has one layer; the second is out of range.
	<-w.Enqueue(tex, [][]byte{{0, 0, 0, 0}, {0, 0, 0, 0}}, false)
	if st := w.Stats(); st.Failed != 1 || st.Completed != 0 {
		t.Fatalf("Stats() = %+v, want one failed job", st)
	}
	if got := w.Ready(); len(got) != 1 {
		t.Fatalf("Ready() returned %d textures, want the failed one", len(got))
	}
	if w.Pending(tex) {
		t.Error("failed texture stays hidden")
	}
}
