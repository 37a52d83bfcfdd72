package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/rpc"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wfunc/zobbo/config"
	"github.com/wfunc/zobbo/game"
	"github.com/wfunc/zobbo/logger"
	"github.com/wfunc/zobbo/monitor"
	"github.com/wfunc/zobbo/network"
	"github.com/wfunc/zobbo/persistence"
	"github.com/wfunc/zobbo/room"
	zobbo_rpc "github.com/wfunc/zobbo/rpc"
	"github.com/wfunc/zobbo/services"
	"github.com/wfunc/zobbo/session"
	"github.com/wfunc/zobbo/timer"
	"github.com/wfunc/zobbo/token"
)

type GameServer struct {
	cfg       *config.Config
	publicURL string
	upgrader  websocket.Upgrader

	rooms    *room.Registry
	sessions *session.Manager
	records  *services.RecordService
	issuer   *token.Issuer
	mon      *monitor.Monitor
	timers   *timer.Scheduler

	router     *mux.Router
	httpServer *http.Server
	rpcServer  *zobbo_rpc.Server
}

// NewGameServer 组装整站：房间注册表、会话管理、令牌签发、
// RPC 查询口。db 与 mon 都可以为 nil。
func NewGameServer(cfg *config.Config, db persistence.Database, mon *monitor.Monitor) *GameServer {
	var key []byte
	if cfg.Auth.HMACKeyHex != "" {
		k, err := token.KeyFromHex(cfg.Auth.HMACKeyHex)
		if err != nil {
			logger.Log.Fatalf("Bad HMAC key: %v", err)
		}
		key = k
	} else {
		k, err := token.RandomKey()
		if err != nil {
			logger.Log.Fatalf("Failed to generate an HMAC key: %v", err)
		}
		logger.Log.Warn("auth.hmac_key_hex 未配置, 使用随机密钥, 重启后旧令牌全部失效")
		key = k
	}

	records := services.NewRecordService(db)
	var stats room.Stats
	if mon != nil {
		stats = mon
	}

	s := &GameServer{
		cfg:       cfg,
		publicURL: strings.TrimRight(cfg.Server.PublicURL, "/"),
		rooms:     room.NewRegistry(stats, records),
		sessions:  session.NewManager(),
		records:   records,
		issuer:    token.NewIssuer(key),
		mon:       mon,
		timers:    timer.NewScheduler(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化RPC服务器
	rpcServer, err := zobbo_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer
	rpc.Register(zobbo_rpc.NewZobboService(s.rooms, s.sessions, s.records))

	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:    cfg.Server.HTTPAddress,
		Handler: s.router,
	}
	return s
}

func (s *GameServer) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/room", s.handleCreateRoom).Methods(http.MethodPost)
	r.HandleFunc("/room/{room_id}/join", s.handleJoinRoom).Methods(http.MethodPost)
	r.HandleFunc("/room/{room_id}/ws", s.handleWebSocket).Methods(http.MethodGet)
	return r
}

// Handler 暴露路由，测试直接挂到 httptest 上
func (s *GameServer) Handler() http.Handler {
	return s.router
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	if s.mon != nil {
		s.mon.StartServer(s.cfg.Server.MetricsAddress)
		s.mon.SetActiveRooms(s.rooms.Count())
		s.timers.Every(15*time.Second, func() {
			s.mon.SetActiveRooms(s.rooms.Count())
		})
	}

	logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown 停掉监听并等待在途请求。长连接由 ctx 的期限兜底。
func (s *GameServer) Shutdown(ctx context.Context) error {
	s.timers.Stop()
	s.rpcServer.Stop()
	return s.httpServer.Shutdown(ctx)
}

// --- HTTP 处理 ---

type CreateRoomRequest struct {
	Mode game.Mode `json:"mode"`
}

type CreateRoomResponse struct {
	RoomID   uuid.UUID `json:"room_id"`
	ShareURL string    `json:"share_url"`
}

type JoinRoomRequest struct {
	Name string `json:"name"`
}

type JoinRoomResponse struct {
	Token    string    `json:"token"`
	PlayerID uuid.UUID `json:"player_id"`
}

func (s *GameServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *GameServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	// 空请求体按默认模式建房
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		respondError(w, http.StatusBadRequest, "Bad request body")
		return
	}

	rm := s.rooms.Create(req.Mode)
	logger.Log.Infof("创建房间 %s, 模式 %s", rm.ID, rm.Mode.Kind)

	respondJSON(w, http.StatusCreated, CreateRoomResponse{
		RoomID:   rm.ID,
		ShareURL: s.publicURL + "/" + rm.ID.String(),
	})
}

func (s *GameServer) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(mux.Vars(r)["room_id"])
	if err != nil {
		respondError(w, http.StatusNotFound, "Room not found")
		return
	}
	rm, ok := s.rooms.Get(roomID)
	if !ok {
		respondError(w, http.StatusNotFound, "Room not found")
		return
	}

	var req JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Bad request body")
		return
	}

	pid, err := rm.Join(req.Name)
	if err == room.ErrRoomFull {
		respondError(w, http.StatusConflict, "Room is full")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	tok, err := s.issuer.Issue(roomID, pid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Log.Infof("玩家 %s(%s) 加入房间 %s", req.Name, pid, roomID)
	respondJSON(w, http.StatusOK, JoinRoomResponse{Token: tok, PlayerID: pid})
}

// handleWebSocket 升级前先过三道门：令牌有效、令牌与路径的
// 房间一致、座位存在。
func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokRoom, pid, err := s.issuer.Verify(r.URL.Query().Get("token"))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	roomID, err := uuid.Parse(mux.Vars(r)["room_id"])
	if err != nil {
		respondError(w, http.StatusNotFound, "Room not found")
		return
	}
	if tokRoom != roomID {
		respondError(w, http.StatusUnauthorized, "Token-room mismatch")
		return
	}

	rm, ok := s.rooms.Get(roomID)
	if !ok {
		respondError(w, http.StatusNotFound, "Room not found")
		return
	}
	if !rm.HasPlayer(pid) {
		respondError(w, http.StatusUnauthorized, "Unknown player")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(rm, pid, conn)
}

func (s *GameServer) handleConnection(rm *room.Room, pid uuid.UUID, conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)

	var metrics session.Metrics
	if s.mon != nil {
		metrics = s.mon
	}
	sess := session.NewSession(pid, rm, wsConn, metrics)
	s.sessions.Add(sess)
	if s.mon != nil {
		s.mon.IncOnlinePlayers()
	}
	logger.Log.Infof("玩家 %s 连接 %s, 房间 %s", pid, wsConn.RemoteAddr(), rm.ID)

	if err := sess.Run(); err != nil {
		logger.Log.Warnf("会话 %s 异常退出: %v", pid, err)
	}

	logger.Log.Infof("玩家 %s 断开, 房间 %s", pid, rm.ID)
	s.sessions.Remove(sess)
	if s.mon != nil {
		s.mon.DecOnlinePlayers()
	}
}

// --- 响应工具 ---

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			logger.Log.Errorf("写响应失败: %v", err)
		}
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}
