package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-runner/internal/integrity"
	"github.com/spigell/interview-runner/internal/logger"
	"github.com/spigell/interview-runner/internal/media"
	"github.com/spigell/interview-runner/internal/report"
	"github.com/spigell/interview-runner/internal/session"
	"github.com/spigell/interview-runner/internal/talent"
)

const (
	PromptStart  = "Start interview"
	PromptResume = "Resume interview"
	PromptRetry  = "Retry"
	PromptExit   = "Exit"
)

var errExit = errors.New("exit requested")

var runCmd = &cobra.Command{
	Use:   "run <interview-id>",
	Short: "Run an AI interview session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("no-video", false, "start with the camera disabled")
	runCmd.Flags().Bool("no-audio", false, "start with the microphone disabled")
	runCmd.Flags().Bool("no-color", false, "do not colour the results")
	runCmd.Flags().String("detector", "", "integrity detector: none or simulated")

	viper.BindPFlag("integrity.detector", runCmd.Flags().Lookup("detector"))
}

// run drives one interview from the start gate to the results.
func run(cmd *cobra.Command, id string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log := newLogger()

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}

	if !viper.GetBool("json") {
		figure.NewFigure("interview", "", true).Print()
		fmt.Println()
	}

	log.Info("starting the interview-runner", zap.String("version", version), zap.String(logger.FieldInterviewID, id))

	client, err := newTalentClient(config.API, log)
	if err != nil {
		log.Fatal("building api client", zap.Error(err),
			zap.String("hint", "set api.token, api.token-file or INTERVIEW_RUNNER_API_TOKEN"))
	}

	s, err := newSession(cmd, id, config, client, log)
	if err != nil {
		log.Fatal("building session", zap.Error(err))
	}

	err = interviewLoop(ctx, cmd, s, log)
	if closeErr := s.Close(); closeErr != nil {
		log.Warn("releasing session", zap.Error(closeErr))
	}

	switch {
	case err == nil:
	case errors.Is(err, errExit), errors.Is(err, promptui.ErrInterrupt), errors.Is(err, context.Canceled):
		log.Info("exiting", zap.String("reason", "interrupted"))
	default:
		log.Error("interview stopped", zap.Error(err))
		os.Exit(1)
	}
}

func newSession(cmd *cobra.Command, id string, config *Config, api session.API, log *zap.Logger) (*session.Session, error) {
	video, audio := config.Media.Video, config.Media.Audio
	if noVideo, _ := cmd.Flags().GetBool("no-video"); noVideo {
		video = false
	}
	if noAudio, _ := cmd.Flags().GetBool("no-audio"); noAudio {
		audio = false
	}

	source := media.NewDeviceSource(config.Media.VideoDevice, config.Media.AudioDevice)

	var detector integrity.Detector = integrity.Nop{}
	switch strings.ToLower(strings.TrimSpace(config.Integrity.Detector)) {
	case "", "none":
	case "simulated":
		detector = integrity.NewSimulated(config.Integrity.Probability, nil)
	default:
		return nil, fmt.Errorf("unsupported integrity detector: %s", config.Integrity.Detector)
	}

	return session.New(id, session.Config{
		Integrity: integrity.Config{
			Interval: config.Integrity.Interval,
			OnWarning: func(total int, sig integrity.Signal) {
				log.Warn("integrity warning",
					zap.Int("warnings", total),
					zap.String("type", sig.Type),
					zap.Duration("duration", sig.Duration),
				)
			},
		},
	}, session.Deps{
		API:      api,
		Media:    media.NewController(source, video, audio, log),
		Detector: detector,
		Logger:   log,
	})
}

func interviewLoop(ctx context.Context, cmd *cobra.Command, s *session.Session, log *zap.Logger) error {
	if err := s.Load(ctx); err != nil {
		// Nothing to show for an interview that cannot be loaded.
		if talent.IsNotFound(err) {
			log.Fatal("interview not found", zap.Error(err))
		}
		log.Fatal("interview unavailable", zap.Error(err))
	}

	if s.NeedsGate() {
		if s.PendingCompletion() {
			if err := completeWithRetry(ctx, s); err != nil {
				return err
			}
		} else {
			if err := startGate(ctx, s, log); err != nil {
				return err
			}
			if err := answerQuestions(ctx, s); err != nil {
				return err
			}
			if s.PendingCompletion() {
				if err := completeWithRetry(ctx, s); err != nil {
					return err
				}
			}
		}
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	return report.Renderer{Color: !noColor}.Render(os.Stdout, s.Interview())
}

func startGate(ctx context.Context, s *session.Session, log *zap.Logger) error {
	startLabel := PromptStart
	if s.Resuming() {
		startLabel = PromptResume
	}

	for {
		toggleVideo := fmt.Sprintf("Camera: %s", onOff(s.VideoEnabled()))
		toggleAudio := fmt.Sprintf("Microphone: %s", onOff(s.AudioEnabled()))

		gate := promptui.Select{
			Label: fmt.Sprintf("%d questions. Ready?", s.Total()),
			Items: []string{startLabel, toggleVideo, toggleAudio, PromptExit},
		}

		_, choice, err := gate.Run()
		if err != nil {
			return err
		}

		switch choice {
		case toggleVideo:
			s.ToggleVideo()
		case toggleAudio:
			s.ToggleAudio()
		case PromptExit:
			return errExit
		case startLabel:
			err := s.Begin(ctx)
			if err == nil {
				return nil
			}
			if errors.Is(err, media.ErrUnavailable) {
				log.Error("camera and microphone are required to take the interview", zap.Error(err))
				return err
			}
			if errors.Is(err, session.ErrNoQuestions) {
				return err
			}
			if retryErr := retryOrExit(fmt.Sprintf("Starting failed: %v", err)); retryErr != nil {
				return retryErr
			}
		}
	}
}

func answerQuestions(ctx context.Context, s *session.Session) error {
	for {
		index, question, ok := s.Current()
		if !ok {
			return nil
		}

		category := ""
		if question.Category != "" {
			category = fmt.Sprintf(" [%s]", question.Category)
		}
		fmt.Printf("\nQuestion %d of %d%s  (elapsed %s, warnings %d)\n%s\n",
			index+1, s.Total(), category, report.FormatElapsed(s.Elapsed()), s.Warnings(), question.Question)

		answerPrompt := promptui.Prompt{
			Label: "Your answer",
			Validate: func(input string) error {
				if strings.TrimSpace(input) == "" {
					return session.ErrEmptyResponse
				}
				return nil
			},
		}

		answer, err := answerPrompt.Run()
		if err != nil {
			return err
		}

		completed, err := submitWithRetry(ctx, s, answer)
		if err != nil {
			return err
		}
		if completed {
			return nil
		}
	}
}

func submitWithRetry(ctx context.Context, s *session.Session, answer string) (bool, error) {
	for {
		result, err := s.Submit(ctx, answer)
		if err == nil {
			return result.Completed, nil
		}

		if result != nil {
			// The answer was saved; only completion failed.
			return true, completeWithRetry(ctx, s)
		}

		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		if retryErr := retryOrExit(fmt.Sprintf("Saving the answer failed: %v", err)); retryErr != nil {
			return false, retryErr
		}
	}
}

func completeWithRetry(ctx context.Context, s *session.Session) error {
	for {
		err := s.Complete(ctx)
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if retryErr := retryOrExit(fmt.Sprintf("Finishing the interview failed: %v", err)); retryErr != nil {
			return retryErr
		}
	}
}

func retryOrExit(label string) error {
	choice := promptui.Select{
		Label: label,
		Items: []string{PromptRetry, PromptExit},
	}

	_, selected, err := choice.Run()
	if err != nil {
		return err
	}
	if selected == PromptExit {
		return errExit
	}
	return nil
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}
