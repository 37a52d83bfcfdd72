package rpc

import (
	"fmt"
	"net"
	"net/rpc"

	"github.com/google/uuid"

	"github.com/wfunc/zobbo/logger"
	"github.com/wfunc/zobbo/models"
	"github.com/wfunc/zobbo/room"
	"github.com/wfunc/zobbo/services"
	"github.com/wfunc/zobbo/session"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server. Services are registered by the
// caller before Start.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// ZobboService 运维侧的查询口：房间、会话和归档数据。
// 方法签名遵循 net/rpc 的约定。
type ZobboService struct {
	rooms    *room.Registry
	sessions *session.Manager
	records  *services.RecordService
}

func NewZobboService(rooms *room.Registry, sessions *session.Manager, records *services.RecordService) *ZobboService {
	return &ZobboService{
		rooms:    rooms,
		sessions: sessions,
		records:  records,
	}
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms []room.Snapshot
}

func (zs *ZobboService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	zs.rooms.Range(func(r *room.Room) bool {
		reply.Rooms = append(reply.Rooms, r.Snapshot())
		return true
	})
	return nil
}

type RoomInfoArgs struct {
	RoomID string
}

type RoomInfoReply struct {
	Room room.Snapshot
}

func (zs *ZobboService) RoomInfo(args *RoomInfoArgs, reply *RoomInfoReply) error {
	id, err := uuid.Parse(args.RoomID)
	if err != nil {
		return err
	}
	r, ok := zs.rooms.Get(id)
	if !ok {
		return fmt.Errorf("room %s not found", args.RoomID)
	}
	reply.Room = r.Snapshot()
	return nil
}

type ServerStatsArgs struct{}

type ServerStatsReply struct {
	Rooms    int
	Sessions int
}

func (zs *ZobboService) ServerStats(args *ServerStatsArgs, reply *ServerStatsReply) error {
	reply.Rooms = zs.rooms.Count()
	reply.Sessions = zs.sessions.Count()
	return nil
}

type MatchHistoryArgs struct {
	Limit int
}

type MatchHistoryReply struct {
	Records []models.MatchRecord
}

func (zs *ZobboService) MatchHistory(args *MatchHistoryArgs, reply *MatchHistoryReply) error {
	records, err := zs.records.History(args.Limit)
	if err != nil {
		return err
	}
	reply.Records = records
	return nil
}

type PlayerSummaryArgs struct {
	PlayerID string
}

type PlayerSummaryReply struct {
	Summary models.PlayerSummary
}

func (zs *ZobboService) PlayerSummary(args *PlayerSummaryArgs, reply *PlayerSummaryReply) error {
	pid, err := uuid.Parse(args.PlayerID)
	if err != nil {
		return err
	}
	summary, err := zs.records.PlayerSummary(pid)
	if err != nil {
		return err
	}
	reply.Summary = *summary
	return nil
}
