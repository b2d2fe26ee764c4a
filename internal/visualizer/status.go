package visualizer

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/meridian-cmm/armcast/internal/telemetry"
)

// StatusScene renders the pose feed as a single overwritable terminal line.
// Each frame repaints in place with a carriage return; lines longer than
// the width are truncated with an ellipsis.
type StatusScene struct {
	mu         sync.Mutex
	out        io.Writer
	width      int
	lastLength int

	joints  [telemetry.NumJoints]float64
	x, y, z float64
	a, b, c float64
	frames  uint64
}

// NewStatusScene creates a StatusScene writing to out, clamped to width
// columns. Width values below 20 are raised to 20.
func NewStatusScene(out io.Writer, width int) *StatusScene {
	if width < 20 {
		width = 20
	}
	return &StatusScene{out: out, width: width}
}

type statusJoint struct {
	scene *StatusScene
	index int
}

func (j statusJoint) SetRotation(deg float64) {
	j.scene.mu.Lock()
	j.scene.joints[j.index] = deg
	j.scene.mu.Unlock()
}

func (s *StatusScene) Joint(i int) JointTransform {
	return statusJoint{scene: s, index: i}
}

func (s *StatusScene) SetEffectorPosition(x, y, z float64) {
	s.mu.Lock()
	s.x, s.y, s.z = x, y, z
	s.mu.Unlock()
}

func (s *StatusScene) SetEffectorOrientation(a, b, c float64) {
	s.mu.Lock()
	s.a, s.b, s.c = a, b, c
	s.mu.Unlock()
}

// Render repaints the status line with the current pose and stream rate.
func (s *StatusScene) Render(seq uint64, avgHz float64, buttons telemetry.ButtonMask) {
	s.mu.Lock()
	defer s.mu.Unlock()

	angles := make([]string, len(s.joints))
	for i, deg := range s.joints {
		angles[i] = fmt.Sprintf("%6.2f", deg)
	}

	line := fmt.Sprintf(
		"#%06d | XYZ=(%8.3f, %8.3f, %8.3f) | ABC=(%8.3f, %8.3f, %8.3f) | Angles=(%s) | Buttons=%d | avg=%6.2fHz",
		seq, s.x, s.y, s.z, s.a, s.b, s.c, strings.Join(angles, ", "), buttons, avgHz,
	)
	line = strings.ReplaceAll(line, "\n", " ")

	maxLen := s.width - 1
	if len(line) > maxLen {
		line = line[:maxLen-3] + "..."
	}

	io.WriteString(s.out, "\r"+line)
	if len(line) < s.lastLength {
		io.WriteString(s.out, strings.Repeat(" ", s.lastLength-len(line)))
	}
	s.lastLength = len(line)
	s.frames++
}

// Clear erases the status line, leaving the cursor at column zero.
func (s *StatusScene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastLength == 0 {
		return
	}
	io.WriteString(s.out, "\r"+strings.Repeat(" ", s.lastLength)+"\r")
	s.lastLength = 0
}
