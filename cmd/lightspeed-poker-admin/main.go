package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tcriess/lightspeed-poker/config"
	"github.com/tcriess/lightspeed-poker/filter"
	"github.com/tcriess/lightspeed-poker/globals"
	"github.com/tcriess/lightspeed-poker/persistence"
	"github.com/tcriess/lightspeed-poker/types"
)

// A very simple CLI tool for the administration of lightspeed-poker rooms and
// their persisted vote history.

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")

	persister persistence.Persister
)

func main() {
	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}
	globals.AppLogger.SetLevel(hclog.LevelFromString("WARN"))
	if globalConfig.LogLevel != "" {
		globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))
	}

	persister, err = persistence.NewPersister(globalConfig)
	if err != nil {
		panic(err)
	}
	if persister == nil {
		fmt.Println("no persistence configured, nothing to administer")
		os.Exit(1)
	}
	defer persister.Close()

	var cmdShowRooms = &cobra.Command{
		Use:   "rooms",
		Short: "List all persisted rooms",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			rooms, err := persister.GetRooms()
			if err != nil {
				fmt.Println("Error:", err.Error())
				os.Exit(1)
			}
			for _, room := range rooms {
				printJson(room)
			}
		},
	}

	var cmdShowRoom = &cobra.Command{
		Use:   "room [room id]",
		Short: "Show one persisted room",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			room := &types.Room{Id: args[0]}
			if err := persister.GetRoom(room); err != nil {
				fmt.Println("Error:", err.Error())
				os.Exit(1)
			}
			printJson(room)
		},
	}

	var cmdDeleteRoom = &cobra.Command{
		Use:   "delete-room [room id]",
		Short: "Delete a persisted room including its vote history",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			room := &types.Room{Id: args[0]}
			if err := persister.DeleteRoom(room); err != nil {
				fmt.Println("Error:", err.Error())
				os.Exit(1)
			}
			fmt.Println("deleted", args[0])
		},
	}

	var cmdSetTag = &cobra.Command{
		Use:   "set-tag [room id] [tag] [value]",
		Short: "Set a tag on a persisted room, omitting the value removes the tag",
		Args:  cobra.RangeArgs(2, 3),
		Run: func(cmd *cobra.Command, args []string) {
			room := &types.Room{Id: args[0]}
			if err := persister.GetRoom(room); err != nil {
				fmt.Println("Error:", err.Error())
				os.Exit(1)
			}
			value := ""
			if len(args) == 3 {
				value = args[2]
			}
			room.Tags = room.Tags.Set(args[1], value)
			if err := persister.StoreRoom(*room); err != nil {
				fmt.Println("Error:", err.Error())
				os.Exit(1)
			}
			printJson(room)
		},
	}

	var historyFilter string
	var historyLimit int
	var cmdHistory = &cobra.Command{
		Use:   "history [room id]",
		Short: "Show the persisted vote history of a room",
		Long: `Show the persisted vote history of a room, newest round first.
An expr filter may be given via --filter, f.e.
  --filter 'Vote.Round > 3 && AsFloat(Vote.Value) >= 8'`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			room := &types.Room{Id: args[0]}
			if err := persister.GetRoom(room); err != nil {
				fmt.Println("Error:", err.Error())
				os.Exit(1)
			}
			records, err := persister.GetVoteHistory(args[0], historyLimit)
			if err != nil {
				fmt.Println("Error:", err.Error())
				os.Exit(1)
			}
			if historyFilter != "" {
				compiled, err := filter.Compile(historyFilter)
				if err != nil {
					fmt.Println("Error: invalid filter:", err.Error())
					os.Exit(1)
				}
				kept := records[:0]
				for _, rec := range records {
					if filter.Run(compiled, filter.NewEnv(room, rec)) {
						kept = append(kept, rec)
					}
				}
				records = kept
			}
			for _, rec := range records {
				printJson(rec)
			}
		},
	}
	cmdHistory.Flags().StringVarP(&historyFilter, "filter", "f", "", "expr filter expression")
	cmdHistory.Flags().IntVarP(&historyLimit, "limit", "n", 0, "maximum number of records (0 = all)")

	var rootCmd = &cobra.Command{Use: "lightspeed-poker-admin"}
	rootCmd.AddCommand(cmdShowRooms, cmdShowRoom, cmdDeleteRoom, cmdSetTag, cmdHistory)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func printJson(v interface{}) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println("Error:", err.Error())
		return
	}
	fmt.Println(string(raw))
}
