package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"media-transcriber/models"
	"media-transcriber/storage"
	"media-transcriber/utils"
)

var (
	action = flag.String("action", "", "Action to perform: list, stats, copy")
	status = flag.String("status", "", "Filter task records by status (for list)")
	limit  = flag.Int("limit", 0, "Maximum number of records to show (0 = all)")
	dest   = flag.String("dest", "exported-transcripts", "Destination directory (for copy)")
)

func main() {
	flag.Parse()

	if *action == "" {
		printUsage()
		os.Exit(1)
	}

	config, err := utils.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(config)
	if err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	db, err := storage.NewDatabase(config.DatabasePath)
	if err != nil {
		fmt.Printf("Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	taskStore := storage.NewTaskStore(db)

	switch *action {
	case "list":
		listRecords(taskStore)
	case "stats":
		showStats(taskStore)
	case "copy":
		copyTranscripts(taskStore, utils.NewFileManager(logger))
	default:
		fmt.Printf("Unknown action: %s\n", *action)
		printUsage()
		os.Exit(1)
	}
}

func listRecords(taskStore *storage.TaskStore) {
	records, err := loadRecords(taskStore)
	if err != nil {
		fmt.Printf("Error listing task records: %v\n", err)
		os.Exit(1)
	}

	if len(records) == 0 {
		fmt.Println("No task records found.")
		return
	}

	fmt.Printf("%-38s %-13s %-20s %-8s %s\n", "ID", "STATUS", "CREATED", "WORDS", "TITLE")
	fmt.Printf("%s\n", strings.Repeat("-", 100))
	for _, rec := range records {
		fmt.Printf("%-38s %-13s %-20s %-8d %s\n",
			rec.ID,
			rec.Status,
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
			rec.WordCount,
			rec.Title,
		)
		if rec.ErrorMessage != "" {
			fmt.Printf("    error: %s\n", rec.ErrorMessage)
		}
	}
}

func showStats(taskStore *storage.TaskStore) {
	stats, err := taskStore.GetStats()
	if err != nil {
		fmt.Printf("Error reading task stats: %v\n", err)
		os.Exit(1)
	}

	if len(stats) == 0 {
		fmt.Println("No task records found.")
		return
	}

	total := 0
	fmt.Printf("%-15s %s\n", "STATUS", "COUNT")
	for _, s := range []models.TaskStatus{
		models.TaskStatusPending, models.TaskStatusDownloading, models.TaskStatusSplitting,
		models.TaskStatusTranscribing, models.TaskStatusCompleted, models.TaskStatusFailed,
		models.TaskStatusCancelled, models.TaskStatusPaused,
	} {
		count, ok := stats[s.String()]
		if !ok {
			continue
		}
		fmt.Printf("%-15s %d\n", s, count)
		total += count
	}
	fmt.Printf("%-15s %d\n", "TOTAL", total)
}

func copyTranscripts(taskStore *storage.TaskStore, fm *utils.FileManager) {
	records, err := taskStore.GetByStatus(models.TaskStatusCompleted)
	if err != nil {
		fmt.Printf("Error listing completed tasks: %v\n", err)
		os.Exit(1)
	}

	if len(records) == 0 {
		fmt.Println("No completed tasks to export.")
		return
	}

	if err := fm.EnsureDir(*dest); err != nil {
		fmt.Printf("Error creating destination directory: %v\n", err)
		os.Exit(1)
	}

	copied := 0
	skipped := 0
	for _, rec := range records {
		if rec.MergedPath == "" {
			skipped++
			continue
		}
		ok := true
		for _, src := range transcriptPaths(rec.MergedPath) {
			if err := fm.CopyFile(src, filepath.Join(*dest, filepath.Base(src))); err != nil {
				fmt.Printf("  skipping %s: %v\n", rec.ID, err)
				ok = false
				break
			}
		}
		if ok {
			copied++
		} else {
			skipped++
		}
	}

	fmt.Printf("Exported %d transcript(s) to %s (%d skipped)\n", copied, *dest, skipped)
}

// transcriptPaths expands the persisted merged JSON path into the pair
// of artifacts sharing its stem.
func transcriptPaths(mergedPath string) []string {
	stem := strings.TrimSuffix(mergedPath, filepath.Ext(mergedPath))
	return []string{mergedPath, stem + ".txt"}
}

func loadRecords(taskStore *storage.TaskStore) ([]*models.TaskRecord, error) {
	if *status != "" {
		return taskStore.GetByStatus(models.TaskStatus(strings.ToUpper(*status)))
	}
	return taskStore.List(*limit)
}

func printUsage() {
	fmt.Println("Transcript export tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  export -action=list [-status=COMPLETED] [-limit=20]")
	fmt.Println("  export -action=stats")
	fmt.Println("  export -action=copy [-dest=exported-transcripts]")
}
