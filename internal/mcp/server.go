package mcp

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/invoicekit/fapiao/internal/batch"
	"github.com/invoicekit/fapiao/internal/config"
	"github.com/invoicekit/fapiao/internal/export"
	"github.com/invoicekit/fapiao/internal/invoice"
)

// Server exposes the extraction engine as MCP tools over stdio.
type Server struct {
	config       *config.Config
	orchestrator *batch.Orchestrator
	mcpServer    *server.MCPServer
	logger       zerolog.Logger
}

// NewServer creates a new MCP server instance.
func NewServer(cfg *config.Config, orchestrator *batch.Orchestrator, logger zerolog.Logger) (*Server, error) {
	if orchestrator == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:       cfg,
		orchestrator: orchestrator,
		mcpServer:    mcpServer,
		logger:       logger,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools.
func (s *Server) registerTools() {
	extractFileTool := mcp.NewTool(
		"invoice_extract_file",
		mcp.WithDescription("Extract structured invoice fields from a single PDF file"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the invoice PDF file"),
		),
	)
	s.mcpServer.AddTool(extractFileTool, s.handleExtractFile)

	extractBatchTool := mcp.NewTool(
		"invoice_extract_batch",
		mcp.WithDescription("Extract and cross-validate invoice fields from every PDF in a directory"),
		mcp.WithString("directory",
			mcp.Description("Directory containing invoice PDFs (uses default if empty)"),
		),
	)
	s.mcpServer.AddTool(extractBatchTool, s.handleExtractBatch)

	exportCSVTool := mcp.NewTool(
		"invoice_export_csv",
		mcp.WithDescription("Extract a directory of invoice PDFs and return the result table as CSV"),
		mcp.WithString("directory",
			mcp.Description("Directory containing invoice PDFs (uses default if empty)"),
		),
	)
	s.mcpServer.AddTool(exportCSVTool, s.handleExportCSV)
}

func (s *Server) handleExtractFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec, err := s.orchestrator.ProcessDocument(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRecord(rec)), nil
}

func (s *Server) handleExtractBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.runBatch(ctx, s.requestDirectory(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Batch %s: %d succeeded, %d failed\n",
		result.BatchID, len(result.Records), len(result.Failures))
	for _, f := range result.Failures {
		fmt.Fprintf(&b, "FAILED %s: %v\n", f.File, f.Err)
	}
	for _, rec := range result.Records {
		b.WriteString("\n")
		b.WriteString(formatRecord(rec))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleExportCSV(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.runBatch(ctx, s.requestDirectory(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, result.Records); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

// requestDirectory resolves the optional directory argument, falling
// back to the configured invoice directory.
func (s *Server) requestDirectory(request mcp.CallToolRequest) string {
	args := request.GetArguments()
	if dir, ok := args["directory"].(string); ok && dir != "" {
		return dir
	}
	return s.config.InvoiceDirectory
}

// runBatch lists the PDFs in dir and processes them as one batch.
func (s *Server) runBatch(ctx context.Context, dir string) (*batch.Result, error) {
	files, err := ListPDFs(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no PDF files found in %s", dir)
	}
	return s.orchestrator.ProcessBatch(ctx, files)
}

// ListPDFs returns the sorted paths of all PDF files directly in dir.
func ListPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func formatRecord(rec *invoice.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", rec.FileName)
	fmt.Fprintf(&b, "Invoice Code: %s\n", rec.InvoiceCode)
	fmt.Fprintf(&b, "Invoice Number: %s\n", rec.InvoiceNo)
	fmt.Fprintf(&b, "Issue Date: %s\n", rec.IssueDate)
	fmt.Fprintf(&b, "Buyer: %s (%s)\n", rec.BuyerName, rec.BuyerTaxID)
	fmt.Fprintf(&b, "Seller: %s (%s)\n", rec.SellerName, rec.SellerTaxID)
	fmt.Fprintf(&b, "Total: %s (%s)\n", rec.TotalAmount, rec.TotalInWords)
	fmt.Fprintf(&b, "Pre-tax: %s  Tax: %s  Rate: %s%%\n", rec.PretaxAmount, rec.TaxAmount, rec.TaxRate)
	return b.String()
}

// Run starts the server over stdio and blocks until the transport closes.
func (s *Server) Run(_ context.Context) error {
	s.logger.Debug().
		Str("dir", s.config.InvoiceDirectory).
		Msg("starting MCP server in stdio mode")

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
