package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	opts    runOptions
)

// runOptions holds the command line flags of a backup run
type runOptions struct {
	file          string
	user          string
	email         string
	saveLocalCopy bool
	getFreeSpace  bool
}

var rootCmd = &cobra.Command{
	Use:   "gdrive-backup",
	Short: "Upload hosting backups to Google Drive, making room for them first",
	Long: `gdrive-backup uploads a backup archive to remote storage. When the remote
account is short on space, the oldest stored backups are deleted first.

The archive is either given directly with --file, or located for a hosting
user with --user (generated with v-backup-user when today's archive is missing).
On success the local archive is removed unless --savelocalcopy is set.

Example:
  gdrive-backup --file=/backup/admin.2026-03-14_03-00-01.tar
  gdrive-backup --user=admin --email=ops@example.com
  gdrive-backup --getfreespace`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBackup,
}

// Execute runs the root command. Any error exits with status 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.yaml", "config file (optional)")

	flags := rootCmd.Flags()
	flags.StringVar(&opts.file, "file", "", "Backup file to upload")
	flags.StringVar(&opts.user, "user", "", "Hosting user whose backup for today is uploaded")
	flags.BoolVar(&opts.saveLocalCopy, "savelocalcopy", false, "Keep the local file after a successful upload")
	flags.StringVar(&opts.email, "email", "", "Address alerted when the backup fails")
	flags.BoolVar(&opts.getFreeSpace, "getfreespace", false, "Print the remote free space in bytes and exit")
}
