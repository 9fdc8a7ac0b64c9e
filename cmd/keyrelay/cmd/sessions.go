package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/keyrelay/session"
	bboltstorage "github.com/jmcleod/keyrelay/storage/bbolt"
)

var sessionsDataDir string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect locally persisted sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openSessionStore()
		if err != nil {
			return err
		}
		defer closeStore()

		records := store.GetAll()
		if len(records) == 0 {
			fmt.Println("No persisted sessions.")
			return nil
		}
		for _, rec := range records {
			persisted := "-"
			if !rec.PersistedAt.IsZero() {
				persisted = rec.PersistedAt.UTC().Format(time.RFC3339)
			}
			blobState := "no blob"
			if rec.Blob != "" {
				blobState = fmt.Sprintf("blob v%d (%s)", rec.PayloadVersion, rec.PayloadType)
			}
			fmt.Printf("local %d  uid %s  user %s  %s  persisted %s\n",
				rec.LocalID, rec.UID, rec.UserID, blobState, persisted)
		}
		return nil
	},
}

var sessionsRemoveCmd = &cobra.Command{
	Use:   "remove <localID>",
	Short: "Remove a persisted session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		localID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid local ID %q", args[0])
		}
		store, closeStore, err := openSessionStore()
		if err != nil {
			return err
		}
		defer closeStore()

		rec := store.Get(localID)
		if rec == nil {
			return fmt.Errorf("no session with local ID %d", localID)
		}
		if err := store.Remove(*rec); err != nil {
			return err
		}
		fmt.Printf("Removed session %d (uid %s)\n", localID, rec.UID)
		return nil
	},
}

func openSessionStore() (*session.Store, func(), error) {
	repo, err := bboltstorage.NewRepositoryFromFile(sessionsDataDir+"/sessions.db", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open session storage: %w", err)
	}
	return session.NewStore(repo), func() { repo.Close() }, nil
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsRemoveCmd)
	sessionsCmd.PersistentFlags().StringVar(&sessionsDataDir, "data-dir", "./data", "Directory for persistent data")
}
