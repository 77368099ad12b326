package main

import (
	"flag"

	"github.com/zhukovaskychina/xmysql-protocol/logger"
	"github.com/zhukovaskychina/xmysql-protocol/server"
	"github.com/zhukovaskychina/xmysql-protocol/server/auth"
	"github.com/zhukovaskychina/xmysql-protocol/server/common"
	"github.com/zhukovaskychina/xmysql-protocol/server/conf"
	"github.com/zhukovaskychina/xmysql-protocol/server/net"
	"github.com/zhukovaskychina/xmysql-protocol/server/protocol"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "configPath", "", "path to the my.ini style config file")
	flag.Parse()

	config := conf.NewCfg().Load(&conf.CommandLineArgs{ConfigPath: configPath})

	if err := logger.InitLogger(logger.LogConfig{
		LogPath:  config.LogPath,
		LogLevel: config.LogLevel,
	}); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}

	logger.Infof("%s starting on %s:%d", config.AppName, config.BindAddress, config.Port)

	// the demo backend answers a couple of probe statements; embedders
	// replace this factory with their own engine
	factory := func(sess server.MySQLServerSession) server.SessionBackend {
		backend := server.NewStaticBackend()
		backend.SchemaMap["probe"] = map[string]string{
			"id":   "bigint",
			"name": "varchar",
		}
		backend.Register("SELECT 1", &server.ResultSet{
			Columns: []*protocol.FieldPacket{
				protocol.GetField("1", common.COLUMN_TYPE_LONGLONG),
			},
			Rows: [][]interface{}{{int64(1)}},
		})
		backend.Register("SELECT @@version_comment LIMIT 1", &server.ResultSet{
			Columns: []*protocol.FieldPacket{
				protocol.GetField("@@version_comment", common.COLUMN_TYPE_VAR_STRING),
			},
			Rows: [][]interface{}{{"xmysql protocol engine"}},
		})
		return backend
	}

	mysqlServer := net.NewMySQLServer(config, &auth.AcceptAllProvider{}, factory)
	mysqlServer.Start()
}
