// Command import-config reads a YAML file of feed task definitions and
// upserts them into the Feed Task table, the CLI counterpart to the
// scheduler's online task management. Exit codes: 0 all tasks upserted,
// 1 the input file could not be read or parsed, 2 one or more tasks
// failed validation or the upsert call itself.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"gopkg.in/yaml.v3"

	"harvester/internal/config"
	"harvester/internal/infra/state"
	"harvester/internal/jobs"
)

type feedTaskDoc struct {
	TaskID     string   `yaml:"task_id"`
	TaskType   string   `yaml:"task_type"`
	Tags       []string `yaml:"tags"`
	ConfigData any      `yaml:"config_data"`
}

type importFile struct {
	Tasks []feedTaskDoc `yaml:"tasks"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	fs := flag.NewFlagSet("import-config", flag.ContinueOnError)
	inputPath := fs.String("file", "", "path to a YAML file of feed task definitions")
	bootstrapPath := fs.String("bootstrap", "config/bootstrap.yaml", "path to the bootstrap config file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *inputPath == "" {
		logger.Error("missing required flag", slog.String("flag", "-file"))
		return 1
	}

	raw, err := os.ReadFile(*inputPath) // #nosec G304 -- operator-supplied path
	if err != nil {
		logger.Error("failed to read import file", slog.Any("error", err))
		return 1
	}

	var doc importFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		logger.Error("failed to parse import file", slog.Any("error", err))
		return 1
	}

	boot, err := config.LoadBootstrap(*bootstrapPath)
	if err != nil {
		logger.Error("failed to load bootstrap configuration", slog.Any("error", err))
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("failed to load AWS configuration", slog.Any("error", err))
		return 1
	}
	feedTasks := state.NewDynamoFeedTaskStore(dynamodb.NewFromConfig(awsCfg), boot.Tables.FeedTasks)

	failed := 0
	for _, t := range doc.Tasks {
		task, err := toFeedTask(t)
		if err != nil {
			logger.Error("skipping invalid task", slog.String("task_id", t.TaskID), slog.Any("error", err))
			failed++
			continue
		}
		if err := feedTasks.Put(ctx, task); err != nil {
			logger.Error("failed to upsert task", slog.String("task_id", t.TaskID), slog.Any("error", err))
			failed++
			continue
		}
		logger.Info("upserted feed task", slog.String("task_id", task.TaskID), slog.String("task_type", task.TaskType))
	}

	if failed > 0 {
		logger.Error("import completed with failures", slog.Int("failed", failed), slog.Int("total", len(doc.Tasks)))
		return 2
	}
	logger.Info("import completed", slog.Int("total", len(doc.Tasks)))
	return 0
}

func toFeedTask(d feedTaskDoc) (jobs.FeedTask, error) {
	configData, err := json.Marshal(d.ConfigData)
	if err != nil {
		return jobs.FeedTask{}, fmt.Errorf("marshal config_data: %w", err)
	}
	task := jobs.FeedTask{
		TaskID:     d.TaskID,
		TaskType:   d.TaskType,
		Tags:       d.Tags,
		ConfigData: configData,
		Version:    1,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := task.Validate(); err != nil {
		return jobs.FeedTask{}, err
	}
	return task, nil
}
