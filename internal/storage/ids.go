package storage

import "github.com/google/uuid"

// newID allocates a fresh 128-bit identifier, returned as its canonical
// string form for use at the interfaces.Store boundary, and as raw bytes
// for storage (schema invariant: "every identifier stored as 16 raw bytes").
func newID() (string, []byte) {
	id := uuid.New()
	return id.String(), id[:]
}

func idToBytes(id string) ([]byte, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	return u[:], nil
}

func idFromBytes(b []byte) (string, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
