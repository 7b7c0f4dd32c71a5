package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/avalon/logger"
	"github.com/wfunc/avalon/models"
	"github.com/wfunc/avalon/services"
)

// ServiceName is the name GameService is registered under.
const ServiceName = "GameService"

const callTimeout = 5 * time.Second

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	server   *rpc.Server
}

// NewServer listens on addr and registers the stats service.
func NewServer(addr string, stats *services.StatsService) (*Server, error) {
	server := rpc.NewServer()
	if err := server.RegisterName(ServiceName, NewGameService(stats)); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		server:   server,
	}, nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.server.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// GameService is the struct that exposes RPC methods.
type GameService struct {
	stats *services.StatsService
}

func NewGameService(stats *services.StatsService) *GameService {
	return &GameService{stats: stats}
}

type GetPlayerStatsArgs struct {
	UserID string
}

type GetPlayerStatsReply struct {
	Stats models.PlayerStats
}

// GetPlayerStats follows the net/rpc signature: exported method, exported
// arguments, pointer reply, error result.
func (gs *GameService) GetPlayerStats(args *GetPlayerStatsArgs, reply *GetPlayerStatsReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	stats, err := gs.stats.GetPlayerStats(ctx, args.UserID)
	if err != nil {
		return err
	}
	reply.Stats = *stats
	return nil
}

type RecentGamesArgs struct {
	Limit int
}

type RecentGamesReply struct {
	Games []models.GameRecord
}

func (gs *GameService) RecentGames(args *RecentGamesArgs, reply *RecentGamesReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	limit := args.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	games, err := gs.stats.RecentGames(ctx, limit)
	if err != nil {
		return err
	}
	reply.Games = games
	return nil
}
