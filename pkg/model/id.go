package model

import (
	"bytes"
	"encoding/json"
)

// ID is a remote identifier. The API returns ids as JSON strings or numbers
// depending on the resource; both decode to the same string form.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	s, err := decodeScalar(b)
	if err != nil {
		return err
	}
	*id = ID(s)
	return nil
}

func (id ID) String() string { return string(id) }

// Port is a TCP port as exchanged with the API. Requests send it as a string;
// responses may carry either form.
type Port string

func (p *Port) UnmarshalJSON(b []byte) error {
	s, err := decodeScalar(b)
	if err != nil {
		return err
	}
	*p = Port(s)
	return nil
}

func (p Port) String() string { return string(p) }

func decodeScalar(b []byte) (string, error) {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return "", nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		err := json.Unmarshal(b, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
