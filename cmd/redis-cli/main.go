package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pior/redis"
)

var (
	client *redis.Client

	rootCmd = &cobra.Command{
		Use:               "redis-cli",
		Short:             "Command line client for RESP servers",
		SilenceUsage:      true,
		PersistentPreRunE: setupClient,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if client != nil {
				client.Close()
			}
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("addr", "localhost:6379", "server address")
	flags.Int32("max-conns", redis.DefaultMaxSize, "maximum number of pooled connections")
	flags.Duration("timeout", 5*time.Second, "timeout of each command, connection acquisition included")
	flags.String("username", "", "ACL username sent with AUTH")
	flags.String("password", "", "password sent with AUTH on every new connection")
	flags.Int("db", 0, "database selected on every new connection")
	flags.Bool("puddle", false, "use the puddle connection pool")
	flags.Bool("breaker", false, "enable the circuit breaker")
	flags.Bool("verbose", false, "log connection lifecycle events")

	rootCmd.AddCommand(pingCmd, getCmd, setCmd, delCmd, incrCmd, doCmd, replCmd, benchCmd)
}

// initConfig reads .env files and maps REDIS_* variables onto flags.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("redis")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func setupClient(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	if viper.GetBool("verbose") {
		logger.SetOutput(os.Stderr)
		logger.SetLevel(logrus.DebugLevel)
	}

	config := redis.Config{
		MaxSize:        viper.GetInt32("max-conns"),
		AcquireTimeout: viper.GetDuration("timeout"),
		DialTimeout:    viper.GetDuration("timeout"),
		Username:       viper.GetString("username"),
		Password:       viper.GetString("password"),
		Database:       viper.GetInt("db"),
		Logger:         logger,
	}
	if viper.GetBool("puddle") {
		config.Pool = redis.NewPuddlePool
	}
	if viper.GetBool("breaker") {
		config.CircuitBreaker = redis.NewCircuitBreakerSettings(1, 10*time.Second, 5*time.Second)
	}

	var err error
	client, err = redis.NewClient(viper.GetString("addr"), config)
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
