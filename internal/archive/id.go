package archive

import (
	"fmt"

	"github.com/google/uuid"
)

func v5(ns uuid.UUID, name string) uuid.UUID {
	return uuid.NewSHA1(ns, []byte(name))
}

// RowID is the archive id of a published row, namespaced by its run.
func RowID(runID uuid.UUID, name string, year int) uuid.UUID {
	return v5(runID, fmt.Sprintf("row:%s:%d", name, year))
}

func dupRowID(runID uuid.UUID, name string, year, position int) uuid.UUID {
	return v5(runID, fmt.Sprintf("row:%s:%d:%d", name, year, position))
}
