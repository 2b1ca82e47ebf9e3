package mssql

import (
	"context"

	"github.com/quarrydata/sync-engine/pkg/adapters/source"
)

func init() {
	source.Register(source.Registration{
		Info: source.AdapterInfo{
			Type:        "mssql",
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2019+, Azure SQL Database",
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
