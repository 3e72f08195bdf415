package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"

	"media-transcriber/models"
	"media-transcriber/pipeline"
	"media-transcriber/storage"
	"media-transcriber/utils"
	"media-transcriber/workers"
)

func main() {
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.NewLogger(config)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	db, err := storage.NewDatabase(config.DatabasePath)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	taskStore := storage.NewTaskStore(db)

	recoveryService := storage.NewRecoveryService(taskStore, logger)
	if err := recoveryService.RecoverIncompleteTasks(); err != nil {
		logger.WithError(err).Error("Startup recovery failed, continuing")
	}

	limiter := utils.NewRequestLimiter(&utils.RateLimitConfig{
		Window:   config.RateLimitWindow,
		Requests: config.RateLimitRequests,
	}, logger)

	downloader := workers.NewVideoDownloader(config, logger)
	splitter := workers.NewAudioSplitter(config, logger)
	transcriber := workers.NewSpeechTranscriber(config, logger, limiter)

	manager := pipeline.NewManager(config, logger, taskStore, downloader, splitter, transcriber)
	manager.Start()

	figure.NewFigure("transcriber", "", true).Print()
	fmt.Println()
	logger.WithField("workers", config.MaxWorkers).
		WithField("queue_size", config.MaxQueueSize).
		Info("Media transcriber started")

	// SIGINT/SIGTERM trigger the same drain as the quit command.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		sig := <-sigCh
		logger.WithField("signal", sig.String()).Info("Signal received, shutting down")
		close(done)
	}()

	go commandLoop(manager, taskStore, done)

	<-done
	manager.Shutdown()
	logger.Info("Goodbye")
}

func commandLoop(manager *pipeline.Manager, taskStore *storage.TaskStore, done chan struct{}) {
	printHelp()
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			close(done)
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "add":
			if len(args) != 1 {
				color.Yellow("usage: add <url>")
				continue
			}
			if task, err := manager.AddTask(args[0]); err != nil {
				color.Red("task rejected: %v", err)
			} else {
				color.Green("queued %s", task.ID())
			}
		case "list":
			printTasks(manager.Tasks())
		case "status":
			if len(args) != 1 {
				color.Yellow("usage: status <task-id>")
				continue
			}
			task := manager.TaskByID(args[0])
			if task == nil {
				color.Red("unknown task %s", args[0])
				continue
			}
			printStatus(task)
		case "watch":
			if len(args) != 1 {
				color.Yellow("usage: watch <task-id>")
				continue
			}
			task := manager.TaskByID(args[0])
			if task == nil {
				color.Red("unknown task %s", args[0])
				continue
			}
			watchTask(task)
		case "pause":
			if len(args) != 1 {
				color.Yellow("usage: pause <task-id>")
				continue
			}
			if manager.PauseTask(args[0]) {
				color.Green("task %s paused", args[0])
			} else {
				color.Red("task %s not found or already finished", args[0])
			}
		case "cancel":
			if len(args) != 1 {
				color.Yellow("usage: cancel <task-id>")
				continue
			}
			if manager.CancelTask(args[0]) {
				color.Green("cancellation requested for %s", args[0])
			} else {
				color.Red("task %s not found or already finished", args[0])
			}
		case "resume":
			if len(args) != 1 {
				color.Yellow("usage: resume <task-id>")
				continue
			}
			task := manager.TaskByID(args[0])
			if task == nil {
				color.Red("unknown task %s", args[0])
				continue
			}
			if err := manager.ResumeTask(task); err != nil {
				color.Red("cannot resume %s: %v", args[0], err)
			} else {
				color.Green("task %s re-queued", args[0])
			}
		case "history":
			printHistory(taskStore)
		case "help":
			printHelp()
		case "quit", "exit":
			close(done)
			return
		default:
			color.Yellow("unknown command %q, type help", cmd)
		}
	}
}

func printHelp() {
	fmt.Println("commands:")
	fmt.Println("  add <url>         queue a video URL for transcription")
	fmt.Println("  list              show all tasks of this session")
	fmt.Println("  status <task-id>  show details for one task")
	fmt.Println("  watch <task-id>   follow download progress with a bar")
	fmt.Println("  pause <task-id>   park a task at the next stage boundary")
	fmt.Println("  cancel <task-id>  request cooperative cancellation")
	fmt.Println("  resume <task-id>  re-queue a failed, cancelled or paused task")
	fmt.Println("  history           show persisted task records")
	fmt.Println("  quit              drain the queue and exit")
}

func printTasks(tasks []*models.Task) {
	if len(tasks) == 0 {
		fmt.Println("no tasks yet")
		return
	}
	bold := color.New(color.Bold).SprintFunc()
	fmt.Printf("%s  %-38s %-13s %-8s %s\n", bold("#"), bold("ID"), bold("STATUS"), bold("PROG"), bold("TITLE"))
	for i, task := range tasks {
		snap := task.Snapshot()
		fmt.Printf("%-2d %-38s %-13s %6.1f%%  %s\n",
			i+1, snap.ID, statusColor(snap.Status), snap.Stats.Progress, snap.Title)
	}
}

func printStatus(task *models.Task) {
	snap := task.Snapshot()
	fmt.Printf("id:       %s\n", snap.ID)
	fmt.Printf("url:      %s\n", snap.URL)
	fmt.Printf("title:    %s\n", snap.Title)
	fmt.Printf("status:   %s\n", statusColor(snap.Status))
	fmt.Printf("progress: %.1f%% (%s of %s)\n", snap.Stats.Progress,
		utils.FormatBytes(snap.Stats.DownloadedBytes), utils.FormatBytes(snap.Stats.TotalBytes))
	if snap.Error != "" {
		fmt.Printf("error:    %s\n", color.RedString(snap.Error))
	}
	if snap.Words > 0 {
		fmt.Printf("words:    %d\n", snap.Words)
	}
	if snap.Language != "" {
		fmt.Printf("language: %s\n", snap.Language)
	}
	if snap.Merged != "" {
		fmt.Printf("output:   %s\n", snap.Merged)
	}
}

// watchTask renders the download progress bar until the task leaves the
// downloading state.
func watchTask(task *models.Task) {
	bar := pb.Full.Start64(0)
	defer bar.Finish()
	for {
		snap := task.Snapshot()
		if snap.Stats.TotalBytes > 0 {
			bar.SetTotal(snap.Stats.TotalBytes)
			bar.SetCurrent(snap.Stats.DownloadedBytes)
		}
		if snap.Status != models.TaskStatusPending && snap.Status != models.TaskStatusDownloading {
			if snap.Stats.TotalBytes > 0 {
				bar.SetCurrent(snap.Stats.TotalBytes)
			}
			fmt.Printf("\ntask is now %s\n", statusColor(snap.Status))
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func printHistory(taskStore *storage.TaskStore) {
	records, err := taskStore.List(20)
	if err != nil {
		color.Red("failed to load history: %v", err)
		return
	}
	if len(records) == 0 {
		fmt.Println("no persisted tasks")
		return
	}
	for _, rec := range records {
		line := fmt.Sprintf("%s  %-13s %-40s %s",
			rec.CreatedAt.Format("2006-01-02 15:04"), statusColor(rec.Status), rec.URL, rec.Title)
		fmt.Println(line)
		if rec.ErrorMessage != "" {
			fmt.Printf("    %s\n", color.RedString(rec.ErrorMessage))
		}
	}
}

func statusColor(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusCompleted:
		return color.GreenString(status.String())
	case models.TaskStatusFailed:
		return color.RedString(status.String())
	case models.TaskStatusCancelled, models.TaskStatusPaused:
		return color.YellowString(status.String())
	case models.TaskStatusDownloading, models.TaskStatusSplitting, models.TaskStatusTranscribing:
		return color.CyanString(status.String())
	default:
		return status.String()
	}
}
