package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"camarero/internal/service"
)

const (
	// ServerName is the MCP server name
	ServerName = "camarero"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server отдаёт операции над заказами как инструменты MCP для ассистентов персонала
type Server struct {
	mcp         *server.MCPServer
	transitions *service.TransitionService
	queues      *service.QueueService
	log         *slog.Logger
}

func NewServer(transitions *service.TransitionService, queues *service.QueueService, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		mcp:         server.NewMCPServer(ServerName, ServerVersion),
		transitions: transitions,
		queues:      queues,
		log:         log,
	}
	s.registerTools()
	return s
}

// Serve обслуживает stdio до конца входа или отмены ctx
func (s *Server) Serve(ctx context.Context) error {
	return s.listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) listen(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.log.Handler(), slog.LevelError))
	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) registerTools() {
	s.mcp.AddTool(kitchenQueueTool(), s.handleKitchenQueue)
	s.mcp.AddTool(pickupQueueTool(), s.handlePickupQueue)
	s.mcp.AddTool(getOrderTool(), s.handleGetOrder)
	s.mcp.AddTool(advanceItemTool(), s.handleAdvanceItem)
	s.mcp.AddTool(cancelItemTool(), s.handleCancelItem)
	s.mcp.AddTool(cancelOrderTool(), s.handleCancelOrder)
	s.mcp.AddTool(addItemsTool(), s.handleAddItems)
	s.mcp.AddTool(requestBillTool(), s.handleRequestBill)
	s.mcp.AddTool(markPaidTool(), s.handleMarkPaid)
}
