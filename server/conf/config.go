package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/ini.v1"
)

var ConfigPath string

type CommandLineArgs struct {
	ConfigPath string
}

// Cfg mirrors a my.cnf style ini file:
//
//	[mysqld]
//	bind-address   = 127.0.0.1
//	port           = 3308
//	server-version = 5.7.32-xmysql-protocol
//	default-authentication-plugin = mysql_native_password
//	character-set-server = utf8
//	log-level      = info
//
//	[session]
//	session_number    = 1000
//	session_timeout   = 60s
//	tcp_no_delay      = true
//	tcp_keep_alive    = true
//	keep_alive_period = 180s
//	tcp_r_buf_size    = 262144
//	tcp_w_buf_size    = 65536
//	pkg_wq_size       = 1024
//	tcp_read_timeout  = 30s
//	tcp_write_timeout = 30s
//	wait_timeout      = 7s
//	max_msg_len       = 16778240
type Cfg struct {
	Raw *ini.File

	BindAddress       string
	Port              int
	AppName           string
	ServerVersion     string
	DefaultAuthPlugin string
	CharacterSet      string
	LogLevel          string
	LogPath           string

	ProfilePort int

	// session
	SessionTimeout         string
	SessionTimeoutDuration time.Duration
	SessionNumber          int

	MySQLSessionParam MySQLSessionParam
}

type MySQLSessionParam struct {
	CompressEncoding        bool
	TcpNoDelay              bool
	TcpKeepAlive            bool
	KeepAlivePeriod         string
	KeepAlivePeriodDuration time.Duration
	TcpRBufSize             int
	TcpWBufSize             int
	PkgWQSize               int
	TcpReadTimeout          string
	TcpReadTimeoutDuration  time.Duration
	TcpWriteTimeout         string
	TcpWriteTimeoutDuration time.Duration
	WaitTimeout             string
	WaitTimeoutDuration     time.Duration
	MaxMsgLen               int
	SessionName             string
}

func NewCfg() *Cfg {
	return &Cfg{
		Raw:               ini.Empty(),
		BindAddress:       "127.0.0.1",
		Port:              3308,
		AppName:           "xmysql-protocol",
		ServerVersion:     "5.7.32-xmysql-protocol",
		DefaultAuthPlugin: "mysql_native_password",
		CharacterSet:      "utf8",
		LogLevel:          "info",
		SessionNumber:     1000,
		SessionTimeout:    "60s",
		MySQLSessionParam: defaultSessionParam(),
	}
}

func defaultSessionParam() MySQLSessionParam {
	return MySQLSessionParam{
		TcpNoDelay:              true,
		TcpKeepAlive:            true,
		KeepAlivePeriod:         "180s",
		KeepAlivePeriodDuration: 180 * time.Second,
		TcpRBufSize:             262144,
		TcpWBufSize:             65536,
		PkgWQSize:               1024,
		TcpReadTimeout:          "30s",
		TcpReadTimeoutDuration:  30 * time.Second,
		TcpWriteTimeout:         "30s",
		TcpWriteTimeoutDuration: 30 * time.Second,
		WaitTimeout:             "7s",
		WaitTimeoutDuration:     7 * time.Second,
		// one max logical packet frame plus slack
		MaxMsgLen:   0xFFFFFF + 1024,
		SessionName: "mysql-session",
	}
}

// Load reads the ini file named by args. Missing file or keys keep the
// defaults.
func (cfg *Cfg) Load(args *CommandLineArgs) *Cfg {
	setHomePath(args)

	iniFile, err := cfg.loadConfiguration(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration failed: %v\n", err)
		return cfg
	}
	cfg.Raw = iniFile

	cfg.parseMysqldCfg(cfg.Raw.Section("mysqld"))
	cfg.parseMysqlSessionCfg(cfg.Raw.Section("session"))
	return cfg
}

func setHomePath(args *CommandLineArgs) {
	if args != nil && args.ConfigPath != "" {
		ConfigPath = args.ConfigPath
		return
	}
	ConfigPath, _ = filepath.Abs(".")
}

func (cfg *Cfg) loadConfiguration(args *CommandLineArgs) (*ini.File, error) {
	if args == nil || args.ConfigPath == "" {
		return ini.Empty(), nil
	}
	if _, err := os.Stat(args.ConfigPath); err != nil {
		return ini.Empty(), nil
	}
	return ini.Load(args.ConfigPath)
}

func (cfg *Cfg) parseMysqldCfg(section *ini.Section) *Cfg {
	if k, err := section.GetKey("bind-address"); err == nil {
		cfg.BindAddress = k.String()
	}
	if k, err := section.GetKey("port"); err == nil {
		if v, err := k.Int(); err == nil {
			cfg.Port = v
		}
	}
	if k, err := section.GetKey("profile-port"); err == nil {
		if v, err := k.Int(); err == nil {
			cfg.ProfilePort = v
		}
	}
	if k, err := section.GetKey("app-name"); err == nil {
		cfg.AppName = k.String()
	}
	if k, err := section.GetKey("server-version"); err == nil {
		cfg.ServerVersion = k.String()
	}
	if k, err := section.GetKey("default-authentication-plugin"); err == nil {
		cfg.DefaultAuthPlugin = k.String()
	}
	if k, err := section.GetKey("character-set-server"); err == nil {
		cfg.CharacterSet = k.String()
	}
	if k, err := section.GetKey("log-level"); err == nil {
		cfg.LogLevel = k.String()
	}
	if k, err := section.GetKey("log-path"); err == nil {
		cfg.LogPath = k.String()
	}
	return cfg
}

func (cfg *Cfg) parseMysqlSessionCfg(section *ini.Section) *Cfg {
	p := &cfg.MySQLSessionParam

	if k, err := section.GetKey("session_number"); err == nil {
		if v, err := k.Int(); err == nil {
			cfg.SessionNumber = v
		}
	}
	if k, err := section.GetKey("session_timeout"); err == nil {
		cfg.SessionTimeout = k.String()
	}
	cfg.SessionTimeoutDuration = parseDuration(cfg.SessionTimeout, 60*time.Second)

	if k, err := section.GetKey("compress_encoding"); err == nil {
		p.CompressEncoding, _ = k.Bool()
	}
	if k, err := section.GetKey("tcp_no_delay"); err == nil {
		p.TcpNoDelay, _ = k.Bool()
	}
	if k, err := section.GetKey("tcp_keep_alive"); err == nil {
		p.TcpKeepAlive, _ = k.Bool()
	}
	if k, err := section.GetKey("keep_alive_period"); err == nil {
		p.KeepAlivePeriod = k.String()
	}
	p.KeepAlivePeriodDuration = parseDuration(p.KeepAlivePeriod, 180*time.Second)

	if k, err := section.GetKey("tcp_r_buf_size"); err == nil {
		if v, err := k.Int(); err == nil {
			p.TcpRBufSize = v
		}
	}
	if k, err := section.GetKey("tcp_w_buf_size"); err == nil {
		if v, err := k.Int(); err == nil {
			p.TcpWBufSize = v
		}
	}
	if k, err := section.GetKey("pkg_wq_size"); err == nil {
		if v, err := k.Int(); err == nil {
			p.PkgWQSize = v
		}
	}
	if k, err := section.GetKey("tcp_read_timeout"); err == nil {
		p.TcpReadTimeout = k.String()
	}
	p.TcpReadTimeoutDuration = parseDuration(p.TcpReadTimeout, 30*time.Second)

	if k, err := section.GetKey("tcp_write_timeout"); err == nil {
		p.TcpWriteTimeout = k.String()
	}
	p.TcpWriteTimeoutDuration = parseDuration(p.TcpWriteTimeout, 30*time.Second)

	if k, err := section.GetKey("wait_timeout"); err == nil {
		p.WaitTimeout = k.String()
	}
	p.WaitTimeoutDuration = parseDuration(p.WaitTimeout, 7*time.Second)

	if k, err := section.GetKey("max_msg_len"); err == nil {
		if v, err := k.Int(); err == nil {
			p.MaxMsgLen = v
		}
	}
	if k, err := section.GetKey("session_name"); err == nil {
		p.SessionName = k.String()
	}
	return cfg
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
