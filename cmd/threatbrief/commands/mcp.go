package commands

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/teranos/threatbrief/generator"
	"github.com/teranos/threatbrief/logger"
	"github.com/teranos/threatbrief/mcpserver"
)

// McpCmd serves the report tools over MCP stdio
var McpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve report tools over the Model Context Protocol (stdio)",
	Long: `Expose generate_incident_report, list_roles and describe_pipeline as
MCP tools on stdin/stdout. Logs go to stderr as JSON.`,
	RunE: runMcp,
}

func runMcp(cmd *cobra.Command, args []string) error {
	// stdout belongs to the protocol
	verbosity, _ := cmd.Flags().GetCount("verbose")
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(os.Stderr),
		logger.VerbosityToLevel(verbosity),
	)
	logger.Logger = zap.New(core).Sugar()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := generator.NewFromConfig(cfg, nil, logger.ComponentLogger("generator"))
	if err != nil {
		return err
	}
	return mcpserver.NewMCPServer(svc, logger.ComponentLogger("mcp")).Serve()
}
