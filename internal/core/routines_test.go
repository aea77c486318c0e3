package core

import (
	"testing"

	"github.com/JonMunkholm/jsonlines/internal/jsonlines"
)

func TestRoutineFor(t *testing.T) {
	tests := []struct {
		dir  Direction
		want jsonlines.Direction
	}{
		{DirectionImport, jsonlines.DirectionFrom},
		{DirectionExport, jsonlines.DirectionTo},
	}
	for _, tt := range tests {
		if got := routineFor(tt.dir).Direction(); got != tt.want {
			t.Errorf("routineFor(%s).Direction() = %v, want %v", tt.dir, got, tt.want)
		}
	}

	if importRoutine().Direction() != jsonlines.DirectionFrom {
		t.Error("importRoutine should serve DirectionFrom")
	}
	if exportRoutine().Direction() != jsonlines.DirectionTo {
		t.Error("exportRoutine should serve DirectionTo")
	}
}
