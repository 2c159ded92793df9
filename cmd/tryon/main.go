package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"tryon-cli/internal/domain"
	"tryon-cli/internal/infra"
	"tryon-cli/internal/provider"
	"tryon-cli/internal/service"
)

// printUsage prints the top level usage instructions.
func printUsage() {
	program := os.Args[0]
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n", program)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  submit    Submit a new try-on generation")
	fmt.Fprintln(os.Stderr, "  status    Check the status of a job once")
	fmt.Fprintln(os.Stderr, "  watch     Follow a job until it terminates")
	fmt.Fprintln(os.Stderr, "  recent    List a customer's recent results")
	fmt.Fprintln(os.Stderr, "  download  Save a customer's recent results to disk")
	fmt.Fprintln(os.Stderr, "Use \"", program, " <command> -h\" for more information about a command.")
}

// splitHosts parses a comma-separated host list from the environment.
func splitHosts(raw string) []string {
	var hosts []string
	for _, host := range strings.Split(raw, ",") {
		host = strings.TrimSpace(host)
		if host != "" {
			hosts = append(hosts, host)
		}
	}
	return hosts
}

// buildService assembles the client stack from environment configuration.
func buildService(logger *infra.Logger) (*service.Service, error) {
	baseURL := strings.TrimSpace(os.Getenv("TRYON_API_BASE_URL"))
	if baseURL == "" {
		return nil, fmt.Errorf("environment variable TRYON_API_BASE_URL is not set")
	}

	auth := provider.NewAuthClient(provider.AuthOptions{
		Sessions: provider.NewMemoryCredentialStore(os.Getenv("TRYON_SESSION_TOKEN")),
		Logger:   logger,
	})
	api, err := provider.NewAPIClient(provider.Options{
		BaseURL: baseURL,
		Shop:    os.Getenv("TRYON_SHOP"),
		Auth:    auth,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	fetcher := provider.NewFetcher(provider.FetcherOptions{
		ProxyURL:   strings.TrimRight(baseURL, "/") + "/api/proxy-image",
		ProxyHosts: splitHosts(os.Getenv("TRYON_PROXY_HOSTS")),
		Logger:     logger,
	})

	return service.NewService(service.Deps{
		Submitter: api,
		Status:    api,
		Fetcher:   fetcher,
		History:   api,
	}, service.ServiceOptions{Logger: logger}), nil
}

func printProgress(ev domain.StatusEvent) {
	if ev.Description != "" {
		fmt.Printf("[%s] %s\n", ev.Status, ev.Description)
		return
	}
	fmt.Printf("[%s]\n", ev.Status)
}

func runSubmit(ctx context.Context, svc *service.Service, args []string) error {
	submitCmd := flag.NewFlagSet("submit", flag.ExitOnError)
	personURL := submitCmd.String("person-url", "", "URL of the person image")
	personFile := submitCmd.String("person-file", "", "Path to a person image file")
	demoID := submitCmd.String("demo-id", "", "Demo person identifier")
	garmentURL := submitCmd.String("garment-url", "", "URL of the garment image")
	garmentFile := submitCmd.String("garment-file", "", "Path to a garment image file")
	email := submitCmd.String("email", "", "Customer email attached to the job")
	productID := submitCmd.String("product-id", "", "Product identifier attached to the job")
	locale := submitCmd.String("locale", "", "Locale hint for server-supplied progress text")
	wait := submitCmd.Bool("wait", true, "Poll the job to completion and print the result URL")
	submitCmd.Parse(args)

	payload := domain.SubmissionPayload{
		PersonImageURL:  *personURL,
		DemoPersonID:    *demoID,
		GarmentImageURL: *garmentURL,
		CustomerEmail:   *email,
		ProductID:       *productID,
		Locale:          *locale,
	}
	if *personFile != "" {
		f, err := os.Open(*personFile)
		if err != nil {
			return fmt.Errorf("opening person image: %w", err)
		}
		defer f.Close()
		payload.PersonImage = &domain.FileUpload{Name: filepath.Base(*personFile), Content: f}
	}
	if *garmentFile != "" {
		f, err := os.Open(*garmentFile)
		if err != nil {
			return fmt.Errorf("opening garment image: %w", err)
		}
		defer f.Close()
		payload.GarmentImage = &domain.FileUpload{Name: filepath.Base(*garmentFile), Content: f}
	}

	if !*wait {
		sub, err := svc.Submit(ctx, payload)
		if err != nil {
			return err
		}
		if sub.Result != nil {
			fmt.Println("Result URL:", sub.Result.SourceURL)
			return nil
		}
		fmt.Println("Job ID:", sub.JobID)
		return nil
	}

	ref, err := svc.Generate(ctx, payload, printProgress)
	if err != nil {
		return err
	}
	fmt.Println("Result URL:", ref.SourceURL)
	return nil
}

func runStatus(ctx context.Context, svc *service.Service, args []string) error {
	statusCmd := flag.NewFlagSet("status", flag.ExitOnError)
	id := statusCmd.String("id", "", "Job ID to check (required)")
	statusCmd.Parse(args)
	if strings.TrimSpace(*id) == "" {
		fmt.Fprintln(os.Stderr, "Error: --id is required")
		statusCmd.Usage()
		os.Exit(1)
	}

	job, err := svc.Status(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Println("Status:", job.Status)
	if text := job.StatusDescription; text != "" {
		fmt.Println("Description:", text)
	}
	if job.ResultURL != "" {
		fmt.Println("Result URL:", job.ResultURL)
	}
	if job.Err != nil {
		fmt.Printf("Error: %s: %s\n", job.Err.Code, job.Err.Message)
	}
	return nil
}

func runWatch(ctx context.Context, svc *service.Service, args []string) error {
	watchCmd := flag.NewFlagSet("watch", flag.ExitOnError)
	id := watchCmd.String("id", "", "Job ID to follow (required)")
	watchCmd.Parse(args)
	if strings.TrimSpace(*id) == "" {
		fmt.Fprintln(os.Stderr, "Error: --id is required")
		watchCmd.Usage()
		os.Exit(1)
	}

	for ev := range svc.Watch(ctx, *id) {
		switch {
		case ev.Err != nil:
			return ev.Err
		case ev.Result != nil:
			fmt.Println("Result URL:", ev.Result.SourceURL)
		default:
			printProgress(ev)
		}
	}
	return nil
}

func runRecent(ctx context.Context, svc *service.Service, args []string) error {
	recentCmd := flag.NewFlagSet("recent", flag.ExitOnError)
	email := recentCmd.String("email", "", "Customer email (required)")
	store := recentCmd.String("store", "", "Store identifier")
	refresh := recentCmd.Bool("refresh", false, "Bypass the recency cache")
	recentCmd.Parse(args)
	if strings.TrimSpace(*email) == "" {
		fmt.Fprintln(os.Stderr, "Error: --email is required")
		recentCmd.Usage()
		os.Exit(1)
	}

	items, err := svc.Recent(ctx, *email, *store, *refresh)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("No recent results.")
		return nil
	}
	for i, item := range items {
		fmt.Printf("%d. %s\n", i+1, item.SourceURL)
	}
	return nil
}

func runDownload(ctx context.Context, svc *service.Service, args []string) error {
	downloadCmd := flag.NewFlagSet("download", flag.ExitOnError)
	email := downloadCmd.String("email", "", "Customer email (required)")
	store := downloadCmd.String("store", "", "Store identifier")
	out := downloadCmd.String("out", ".", "Output directory")
	downloadCmd.Parse(args)
	if strings.TrimSpace(*email) == "" {
		fmt.Fprintln(os.Stderr, "Error: --email is required")
		downloadCmd.Usage()
		os.Exit(1)
	}

	paths, err := svc.DownloadRecent(ctx, *email, *store, *out)
	if err != nil {
		return err
	}
	for _, path := range paths {
		fmt.Println("Saved:", path)
	}
	return nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Missing .env is fine; real environments export the variables directly.
	godotenv.Load()
	logger := infra.NewLogger(os.Getenv("APP_ENV"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := os.Args[1]
	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		printUsage()
		return
	}

	svc, err := buildService(&logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	var runErr error
	switch cmd {
	case "submit":
		runErr = runSubmit(ctx, svc, os.Args[2:])
	case "status":
		runErr = runStatus(ctx, svc, os.Args[2:])
	case "watch":
		runErr = runWatch(ctx, svc, os.Args[2:])
	case "recent":
		runErr = runRecent(ctx, svc, os.Args[2:])
	case "download":
		runErr = runDownload(ctx, svc, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, "Error:", runErr)
		os.Exit(1)
	}
}
