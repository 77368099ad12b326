package net

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gxlog "github.com/AlexStocks/goext/log"
	gxnet "github.com/AlexStocks/goext/net"
	log "github.com/AlexStocks/log4go"

	"github.com/zhukovaskychina/xmysql-protocol/server"
	"github.com/zhukovaskychina/xmysql-protocol/server/auth"
	"github.com/zhukovaskychina/xmysql-protocol/server/conf"
)

const (
	pprofPath = "/debug/pprof/"
)

const logBanner = `
******************************************************************************************

 __   ____  __        _____  ____  _          _____  _____   ____ _______ ____
 \ \ / /  \/  |      / ____|/ __ \| |        |  __ \|  __ \ / __ \__   __/ __ \
  \ V /| \  / |_   _| (___ | |  | | |  ______| |__) | |__) | |  | | | | | |  | |
   > < | |\/| | | | |\___ \| |  | | | |______|  ___/|  _  /| |  | | | | | |  | |
  / . \| |  | | |_| |____) | |__| | |____    | |    | | \ \| |__| | | | | |__| |
 /_/ \_\_|  |_|\__, |_____/ \___\_\______|   |_|    |_|  \_\\____/  |_|  \____/
                __/ |
               |___/
******************************************************************************************
`

var (
	mysqlPkgHandler = NewMySQLPkgHandler()
)

// MySQLServer accepts TCP connections and runs each one through the
// protocol engine. ServeConn/ServeStream let an embedder hand over
// transports it established itself.
type MySQLServer struct {
	conf     *conf.Cfg
	handler  *MySQLMessageHandler
	listener net.Listener
	done     chan struct{}
}

func NewMySQLServer(cfg *conf.Cfg, provider auth.IdentityProvider, factory server.BackendFactory) *MySQLServer {
	return &MySQLServer{
		conf:    cfg,
		handler: NewMySQLMessageHandler(cfg, provider, factory),
		done:    make(chan struct{}),
	}
}

// Start binds the listener and blocks until a signal arrives.
func (srv *MySQLServer) Start() {
	initProfiling(srv.conf)

	if err := srv.Listen(); err != nil {
		log.Error("listen failed: %v", err)
		os.Exit(1)
	}

	gxlog.CInfo(logBanner)
	gxlog.CInfo("%s starts successfull! its listen ends=%s:%d",
		srv.conf.AppName, srv.conf.BindAddress, srv.conf.Port)
	log.Info("%s starts successfull! its listen ends=%s:%d",
		srv.conf.AppName, srv.conf.BindAddress, srv.conf.Port)

	srv.initSignal()
}

// Listen binds the port and starts the accept loop in the background.
func (srv *MySQLServer) Listen() error {
	addr := gxnet.HostAddress(srv.conf.BindAddress, srv.conf.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv.listener = listener
	go srv.acceptLoop()
	return nil
}

// Addr reports the bound address, useful when port 0 was configured.
func (srv *MySQLServer) Addr() net.Addr {
	if srv.listener == nil {
		return nil
	}
	return srv.listener.Addr()
}

func (srv *MySQLServer) acceptLoop() {
	for {
		conn, err := srv.listener.Accept()
		if err != nil {
			select {
			case <-srv.done:
				return
			default:
			}
			log.Warn("accept failed: %v", err)
			continue
		}
		if err := srv.ServeConn(conn); err != nil {
			log.Warn("serve %s failed: %v", conn.RemoteAddr(), err)
			conn.Close()
		}
	}
}

// ServeConn runs the protocol over an established net.Conn.
func (srv *MySQLServer) ServeConn(conn net.Conn) error {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		param := srv.conf.MySQLSessionParam
		tcpConn.SetNoDelay(param.TcpNoDelay)
		tcpConn.SetKeepAlive(param.TcpKeepAlive)
		if param.TcpKeepAlive {
			tcpConn.SetKeepAlivePeriod(param.KeepAlivePeriodDuration)
		}
		tcpConn.SetReadBuffer(param.TcpRBufSize)
		tcpConn.SetWriteBuffer(param.TcpWBufSize)
	}
	ss := newTCPSession(conn)
	return srv.runSession(ss)
}

// ServeStream runs the protocol over a caller-established pair of byte
// streams; the engine never opens sockets for these.
func (srv *MySQLServer) ServeStream(reader io.Reader, writer io.Writer, closer io.Closer, peer string) error {
	ss := NewStreamSession(reader, writer, closer, peer)
	return srv.runSession(ss)
}

func (srv *MySQLServer) runSession(ss Session) error {
	param := srv.conf.MySQLSessionParam
	ss.SetName(param.SessionName)
	ss.SetMaxMsgLen(param.MaxMsgLen)
	ss.SetReader(mysqlPkgHandler)
	ss.SetEventListener(srv.handler)
	ss.SetReadTimeout(param.TcpReadTimeoutDuration)
	ss.SetWriteTimeout(param.TcpWriteTimeoutDuration)
	ss.run()
	return nil
}

// Stop closes the listener; live sessions drain on their own.
func (srv *MySQLServer) Stop() {
	select {
	case <-srv.done:
		return
	default:
		close(srv.done)
	}
	if srv.listener != nil {
		srv.listener.Close()
	}
}

// SessionCount reports the live connection count.
func (srv *MySQLServer) SessionCount() int {
	return srv.handler.SessionCount()
}

func initProfiling(cfg *conf.Cfg) {
	if cfg.ProfilePort <= 0 {
		return
	}
	addr := gxnet.HostAddress(cfg.BindAddress, cfg.ProfilePort)
	log.Info("App Profiling startup on address{%v}", addr+pprofPath)
	go func() {
		log.Info(fmt.Sprint(http.ListenAndServe(addr, nil)))
	}()
}

func (srv *MySQLServer) initSignal() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	for {
		sig := <-signals
		log.Info("got signal %s", sig.String())
		switch sig {
		case syscall.SIGHUP:
			// reload is not supported; keep serving
		default:
			srv.Stop()
			// wait a beat for in-flight responses
			time.Sleep(time.Second)
			log.Close()
			return
		}
	}
}
