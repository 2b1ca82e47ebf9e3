package postgres

import (
	"context"

	"github.com/quarrydata/sync-engine/pkg/adapters/source"
)

func init() {
	source.Register(source.Registration{
		Info: source.AdapterInfo{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
			Description: "Connect to PostgreSQL 12+",
		},
		Factory: func(ctx context.Context, config map[string]any) (source.Connector, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewConnector(ctx, cfg)
		},
	})
}
