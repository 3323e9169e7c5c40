package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/interview-runner/internal/interview"
	"github.com/spigell/interview-runner/internal/logger"
	"github.com/spigell/interview-runner/internal/report"
	"github.com/spigell/interview-runner/internal/talent"
)

var showCmd = &cobra.Command{
	Use:   "show <interview-id>",
	Short: "Show the results or progress of an interview",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		show(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().String("pdf", "", "also write the results to this PDF file")
	showCmd.Flags().Bool("no-color", false, "do not colour the results")
}

func show(cmd *cobra.Command, id string) {
	log := newLogger()

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}
	log.Debug("config loaded", zap.Any("api", config.API))

	client, err := newTalentClient(config.API, log)
	if err != nil {
		log.Fatal("building api client", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	iv, err := client.GetInterview(ctx, id)
	if talent.IsNotFound(err) {
		log.Fatal("interview not found", zap.String(logger.FieldInterviewID, id))
	}
	if err != nil {
		log.Fatal("interview unavailable", zap.Error(err), zap.String(logger.FieldInterviewID, id))
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	if iv.Status == interview.StatusCompleted {
		err = report.Renderer{Color: !noColor}.Render(os.Stdout, iv)
	} else {
		err = report.Progress(os.Stdout, iv)
	}
	if err != nil {
		log.Fatal("printing the interview", zap.Error(err))
	}

	pdfPath, _ := cmd.Flags().GetString("pdf")
	if pdfPath == "" {
		return
	}

	if err := writePDF(pdfPath, iv); err != nil {
		log.Fatal("writing pdf", zap.Error(err), zap.String("path", pdfPath))
	}
	log.Info("pdf written", zap.String("path", pdfPath))
}

func writePDF(path string, iv *interview.Interview) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WritePDF(f, iv); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
