package mysql

import (
	"context"

	"github.com/quarrydata/sync-engine/pkg/adapters/source"
)

func init() {
	source.Register(source.Registration{
		Info: source.AdapterInfo{
			Type:        "mysql",
			DisplayName: "MySQL / MariaDB",
			Description: "Connect to MySQL 5.7+, MariaDB 10.3+",
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
