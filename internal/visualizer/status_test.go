package visualizer

import (
	"strings"
	"testing"
)

func TestStatusSceneRendersSingleLine(t *testing.T) {
	var buf strings.Builder
	scene := NewStatusScene(&buf, 200)
	model := NewModel(scene)

	model.Apply(sampleWithSeq(42))
	scene.Render(42, 50.0, 3)

	out := buf.String()
	if !strings.HasPrefix(out, "\r") {
		t.Error("render should start with a carriage return")
	}
	if strings.Contains(out[1:], "\n") {
		t.Error("status line must not contain newlines")
	}
	if !strings.Contains(out, "#000042") {
		t.Errorf("missing sequence counter in %q", out)
	}
	if !strings.Contains(out, "Buttons=3") {
		t.Errorf("missing buttons in %q", out)
	}
	if !strings.Contains(out, " 50.00Hz") {
		t.Errorf("missing rate in %q", out)
	}
}

func TestStatusSceneTruncatesToWidth(t *testing.T) {
	var buf strings.Builder
	scene := NewStatusScene(&buf, 60)
	model := NewModel(scene)

	model.Apply(sampleWithSeq(1))
	scene.Render(1, 50.0, 0)

	line := strings.TrimPrefix(buf.String(), "\r")
	if len(line) > 59 {
		t.Errorf("line length = %d, want <= 59", len(line))
	}
	if !strings.HasSuffix(line, "...") {
		t.Errorf("truncated line should end with ellipsis: %q", line)
	}
}

func TestStatusScenePadsShrinkingLines(t *testing.T) {
	var buf strings.Builder
	scene := NewStatusScene(&buf, 200)

	scene.SetEffectorPosition(12345.678, 12345.678, 12345.678)
	scene.Render(1, 50.0, 255)
	firstLen := len(strings.TrimPrefix(buf.String(), "\r"))

	buf.Reset()
	scene.SetEffectorPosition(1, 2, 3)
	scene.Render(2, 5.0, 0)

	// repaint plus trailing spaces must fully cover the previous line
	repaint := strings.TrimPrefix(buf.String(), "\r")
	if len(repaint) < firstLen {
		t.Errorf("repaint covers %d columns, previous line had %d", len(repaint), firstLen)
	}
}

func TestStatusSceneClear(t *testing.T) {
	var buf strings.Builder
	scene := NewStatusScene(&buf, 120)
	scene.Render(1, 0, 0)

	buf.Reset()
	scene.Clear()
	out := buf.String()
	if !strings.HasPrefix(out, "\r") || !strings.HasSuffix(out, "\r") {
		t.Errorf("clear should bracket spaces with carriage returns: %q", out)
	}

	buf.Reset()
	scene.Clear()
	if buf.Len() != 0 {
		t.Error("second clear should be a no-op")
	}
}

func TestStatusSceneImplementsScene(t *testing.T) {
	var _ Scene = NewStatusScene(&strings.Builder{}, 80)

	var buf strings.Builder
	scene := NewStatusScene(&buf, 200)
	scene.Joint(2).SetRotation(45.5)
	scene.Render(1, 0, 0)
	if !strings.Contains(buf.String(), " 45.50") {
		t.Errorf("joint angle missing from %q", buf.String())
	}
}
