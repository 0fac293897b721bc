// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ledger

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Export writes every recorded event for groupID to w as
// newline-delimited gzip-compressed JSON, the same shape the teacher's
// archive compression produces for older job records.
func (s *Store) Export(w io.Writer, groupID string) error {
	events, err := s.History(groupID)
	if err != nil {
		return err
	}

	gw := gzip.NewWriter(w)
	enc := json.NewEncoder(gw)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			gw.Close()
			return fmt.Errorf("ledger: encoding event %d: %w", e.ID, err)
		}
	}
	return gw.Close()
}
