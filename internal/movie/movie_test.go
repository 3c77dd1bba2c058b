package movie

import (
	"image"
	"image/color"
	"os/exec"
	"path/filepath"
	"testing"
)

func gradientStack(n, h, w int) *ImageStack {
	s := NewImageStack(n, h, w)
	for t, f := range s.Frames {
		for i := range f {
			f[i] = float64(t*len(f) + i)
		}
	}
	return s
}

func TestImageStackValidate(t *testing.T) {
	s := NewImageStack(3, 4, 5)
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}

	s.Frames[1] = make([]float64, 7)
	if err := s.Validate(); err == nil {
		t.Error("Validate() with a short frame succeeded")
	}
}

func TestMinMax(t *testing.T) {
	s := gradientStack(2, 2, 3)
	min, max := s.MinMax()
	if min != 0 || max != 11 {
		t.Errorf("MinMax() = (%v, %v), want (0, 11)", min, max)
	}
}

func TestPercentileRange(t *testing.T) {
	s := gradientStack(2, 2, 3)

	lo, hi, err := s.PercentileRange(0, 100)
	if err != nil {
		t.Fatalf("PercentileRange() error = %v", err)
	}
	if lo != 0 || hi != 11 {
		t.Errorf("PercentileRange(0, 100) = (%v, %v), want (0, 11)", lo, hi)
	}

	lo, hi, err = s.PercentileRange(10, 99.99)
	if err != nil {
		t.Fatalf("PercentileRange() error = %v", err)
	}
	if lo <= 0 || hi > 11 || lo >= hi {
		t.Errorf("PercentileRange(10, 99.99) = (%v, %v)", lo, hi)
	}
}

func TestDrawPanel(t *testing.T) {
	s := NewImageStack(1, 20, 20)
	for i := range s.Frames[0] {
		s.Frames[0][i] = float64(i % 20) // horizontal gradient 0..19
	}

	frame := image.NewRGBA(image.Rect(0, 0, 40, 20))
	chip := color.RGBA{R: 200, G: 10, B: 10, A: 255}
	drawPanel(frame, 20, s, 0, 0, 19, chip)

	// Left half untouched, right half holds the panel.
	if got := frame.RGBAAt(5, 10); got.A != 0 {
		t.Errorf("pixel outside the panel was written: %+v", got)
	}
	dark := frame.RGBAAt(20, 10)
	bright := frame.RGBAAt(39, 10)
	if dark.R != 0 {
		t.Errorf("leftmost column = %+v, want black", dark)
	}
	if bright.R != 255 || bright.R != bright.G || bright.G != bright.B {
		t.Errorf("rightmost column = %+v, want white", bright)
	}

	// Top-right corner carries the state chip.
	if got := frame.RGBAAt(39, 0); got.R != 200 || got.G != 10 {
		t.Errorf("chip pixel = %+v, want %+v", got, chip)
	}
}

func TestDrawPanelFlatRange(t *testing.T) {
	s := NewImageStack(1, 4, 4)
	for i := range s.Frames[0] {
		s.Frames[0][i] = 7
	}
	frame := image.NewRGBA(image.Rect(0, 0, 4, 4))
	drawPanel(frame, 0, s, 0, 7, 7, color.Black)
	if got := frame.RGBAAt(2, 2); got.R != 0 || got.A != 255 {
		t.Errorf("flat-range pixel = %+v, want opaque black", got)
	}
}

func TestClampState(t *testing.T) {
	tests := []struct{ z, k, want int }{
		{0, 4, 0},
		{3, 4, 3},
		{-1, 4, 0},
		{4, 4, 3},
		{9, 4, 3},
	}
	for _, tt := range tests {
		if got := clampState(tt.z, tt.k); got != tt.want {
			t.Errorf("clampState(%d, %d) = %d, want %d", tt.z, tt.k, got, tt.want)
		}
	}
}

func TestHollywoodArgumentChecks(t *testing.T) {
	realStack := gradientStack(5, 8, 8)
	decoded := gradientStack(5, 8, 8)
	inferred := make([]int, 5)
	states := [][]int{make([]int, 5)}
	path := filepath.Join(t.TempDir(), "out.mp4")
	opts := DefaultOptions()

	tests := []struct {
		name string
		call func() error
	}{
		{"no decoded stacks", func() error {
			return Hollywood(2, realStack, inferred, nil, nil, path, opts)
		}},
		{"mismatched state paths", func() error {
			return Hollywood(2, realStack, inferred, []*ImageStack{decoded}, nil, path, opts)
		}},
		{"wrong panel size", func() error {
			small := gradientStack(5, 4, 4)
			return Hollywood(2, realStack, inferred, []*ImageStack{small}, states, path, opts)
		}},
		{"short inferred path", func() error {
			return Hollywood(2, realStack, []int{0, 1}, []*ImageStack{decoded}, states, path, opts)
		}},
		{"short state path", func() error {
			return Hollywood(2, realStack, inferred, []*ImageStack{decoded}, [][]int{{0, 0}}, path, opts)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); err == nil {
				t.Error("Hollywood() succeeded, want argument error")
			}
		})
	}
}

func TestEncoderAbortReapsProcess(t *testing.T) {
	// cat blocks on stdin forever; Abort must kill and reap it rather
	// than leave it running.
	cmd := exec.Command("cat")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start subprocess: %v", err)
	}

	enc := &Encoder{cmd: cmd, stdin: stdin}
	enc.Abort()

	if cmd.ProcessState == nil {
		t.Fatal("Abort() did not reap the encoder process")
	}
}

func TestSaveLoadStack(t *testing.T) {
	s := gradientStack(3, 4, 5)
	path := filepath.Join(t.TempDir(), "stack.bin")

	if err := SaveStack(s, path); err != nil {
		t.Fatalf("SaveStack() error = %v", err)
	}
	got, err := LoadStack(path)
	if err != nil {
		t.Fatalf("LoadStack() error = %v", err)
	}
	if got.H != 4 || got.W != 5 || got.Len() != 3 {
		t.Fatalf("LoadStack() dims = %dx%d, %d frames", got.H, got.W, got.Len())
	}
	if got.Frames[2][19] != s.Frames[2][19] {
		t.Error("LoadStack() pixel data differs")
	}
}

func TestLoadStackMissing(t *testing.T) {
	if _, err := LoadStack(filepath.Join(t.TempDir(), "nope.bin")); err == nil {
		t.Error("LoadStack() on a missing file succeeded")
	}
}
