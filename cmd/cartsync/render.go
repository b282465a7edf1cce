package main

import (
	"encoding/json"

	"github.com/angelmondragon/packfinderz-cartsync/internal/session"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/enums"
)

type sessionView struct {
	session.Snapshot
	Account   string          `json:"account,omitempty"`
	Phase     enums.SyncPhase `json:"phase"`
	Total     string          `json:"total"`
	ItemCount int             `json:"itemCount"`
}

func (c *cli) view() sessionView {
	snapshot := c.coord.State()
	return sessionView{
		Snapshot:  snapshot,
		Account:   c.coord.Account(),
		Phase:     c.coord.Phase(),
		Total:     snapshot.CartTotal().StringFixed(2),
		ItemCount: snapshot.ItemCount(),
	}
}

func (c *cli) render() error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(c.view())
}
