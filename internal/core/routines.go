package core

import "github.com/JonMunkholm/jsonlines/internal/jsonlines"

// routineFor returns the format handler's routine for a transfer direction.
func routineFor(dir Direction) jsonlines.Routine {
	if dir == DirectionExport {
		return jsonlines.Handler(jsonlines.DirectionTo)
	}
	return jsonlines.Handler(jsonlines.DirectionFrom)
}

func importRoutine() jsonlines.CopyFromRoutine {
	return routineFor(DirectionImport).(jsonlines.CopyFromRoutine)
}

func exportRoutine() jsonlines.CopyToRoutine {
	return routineFor(DirectionExport).(jsonlines.CopyToRoutine)
}
