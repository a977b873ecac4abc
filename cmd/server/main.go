/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the backorder board server.
  Handles configuration, dependency injection, and graceful shutdown.

COMMANDS:
  serve             Run the HTTP server and refresh scheduler (default)
  rebuild-tracking  Rebuild the tracking index from day-logs and exit
  dates             Print days that have completion records

STARTUP SEQUENCE (serve):
  1. Load configuration (viper: file, BOARD_* env, defaults)
  2. Build logger, day-log store, tracker, provider, controller
  3. Load the tracking index (snapshot or rebuild)
  4. Start the refresh scheduler and the HTTP server

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler and close the database pool
  4. Exit

EXAMPLES:
  # Run against SQL Server configured in board.yaml
  ./server serve

  # Run with demo data, no database
  BOARD_APP_OFFLINE_MODE=true ./server

  # Recover a lost snapshot
  ./server rebuild-tracking --config /etc/board/board.yaml

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
*/
package main

func main() {
	Execute()
}
