package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/quarry/pkg/codec"
	"github.com/cuemby/quarry/pkg/log"
	"github.com/cuemby/quarry/pkg/statemachine"
	"github.com/cuemby/quarry/pkg/storage"
	"github.com/cuemby/quarry/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
)

var dbPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "quarry-state",
	Short: "Inspect a Quarry state machine database",
	Long: `quarry-state is an operator tool for inspecting the persisted
forward index of a Quarry control-plane replica: dumping columns,
listing unprocessed state changes, and verifying that the forward
index is internally consistent.`,
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the state database file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(changesCmd)
	rootCmd.AddCommand(verifyCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

func openStore() (*storage.Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("--db is required")
	}
	return storage.Open(storage.Config{Path: dbPath, CreateIfMissing: false})
}

var dumpCmd = &cobra.Command{
	Use:   "dump <column>",
	Short: "Print every record in a column as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		col := storage.Column(args[0])
		return store.View(func(txn *storage.Txn) error {
			return txn.ForEach(col, func(key string, value []byte) error {
				fmt.Printf("%s\t%s\n", key, value)
				return nil
			})
		})
	},
}

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "List state changes not yet marked processed",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		return store.View(func(txn *storage.Txn) error {
			return txn.ForEach(storage.ColumnStateChanges, func(key string, value []byte) error {
				var change types.StateChange
				if err := codec.Decode(value, &change); err != nil {
					return err
				}
				if change.ProcessedAt != nil {
					return nil
				}
				line, err := json.Marshal(change)
				if err != nil {
					return err
				}
				fmt.Println(string(line))
				return nil
			})
		})
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check forward-index consistency and print reverse-index sizes",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		var problems []string
		err = store.View(func(txn *storage.Txn) error {
			// Every assigned task must exist and be unfinished.
			if err := txn.ForEach(storage.ColumnTaskAssignments, func(executorID string, value []byte) error {
				var tasks types.StringSet
				if err := codec.Decode(value, &tasks); err != nil {
					return err
				}
				for _, taskID := range tasks.Values() {
					data, err := txn.Get(storage.ColumnTasks, taskID)
					if err != nil {
						return err
					}
					if data == nil {
						problems = append(problems, fmt.Sprintf("executor %s assigned unknown task %s", executorID, taskID))
						continue
					}
					var task types.Task
					if err := codec.Decode(data, &task); err != nil {
						return err
					}
					if task.Outcome.Terminal() {
						problems = append(problems, fmt.Sprintf("executor %s assigned finished task %s", executorID, taskID))
					}
				}
				return nil
			}); err != nil {
				return err
			}

			// Every executor's extractor must be registered.
			return txn.ForEach(storage.ColumnExecutors, func(executorID string, value []byte) error {
				var meta types.ExecutorMetadata
				if err := codec.Decode(value, &meta); err != nil {
					return err
				}
				data, err := txn.Get(storage.ColumnExtractors, meta.Extractor.Name)
				if err != nil {
					return err
				}
				if data == nil {
					problems = append(problems, fmt.Sprintf("executor %s references unknown extractor %s", executorID, meta.Extractor.Name))
				}
				return nil
			})
		})
		if err != nil {
			return err
		}

		reverse, err := statemachine.Rebuild(store)
		if err != nil {
			return err
		}

		fmt.Printf("unassigned_tasks: %d\n", reverse.UnassignedTasks.Len())
		fmt.Printf("unprocessed_state_changes: %d\n", reverse.UnprocessedStateChanges.Len())
		fmt.Printf("executors: %d\n", len(reverse.ExecutorRunningTaskCount))
		fmt.Printf("namespaces_with_content: %d\n", len(reverse.ContentNamespaceTable))

		if len(problems) > 0 {
			for _, p := range problems {
				fmt.Fprintln(os.Stderr, p)
			}
			return fmt.Errorf("found %d consistency problems", len(problems))
		}
		fmt.Println("ok")
		return nil
	},
}
