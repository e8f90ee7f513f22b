// Command outfitctl drives the outfit API from a terminal.
//
//	outfitctl [global flags] estimate -height-cm 170 -photo me.jpg
//	outfitctl [global flags] generate -prompt "linen suit" [-direct] [-out suit.png]
//	outfitctl [global flags] revise -text "make it navy" [-outfit-id OUT-...]
//
// The session token is kept in -session-file so consecutive invocations
// revise the same session.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"makemyoutfit/internal/client"
	"makemyoutfit/internal/domain"
	"makemyoutfit/internal/imaging"
)

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type globals struct {
	server      string
	apiKey      string
	sessionFile string
	verbose     bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var g globals
	fs := flag.NewFlagSet("outfitctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&g.server, "server", envOr("OUTFIT_SERVER", "http://localhost:8080"), "outfit API base URL")
	fs.StringVar(&g.apiKey, "api-key", os.Getenv("GEMINI_API_KEY"), "Gemini API key sent as X-API-Key")
	fs.StringVar(&g.sessionFile, "session-file", envOr("OUTFIT_SESSION_FILE", ".outfitctl-session"), "file holding the session token")
	fs.BoolVar(&g.verbose, "v", false, "debug logging")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: outfitctl [flags] <estimate|generate|revise> [command flags]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	level := zerolog.InfoLevel
	if g.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}).Level(level).With().Timestamp().Logger()

	c := client.New(client.Options{
		BaseURL:    g.server,
		APIKey:     g.apiKey,
		SessionID:  readSession(g.sessionFile),
		HTTPClient: &http.Client{Timeout: 3 * time.Minute},
		Logger:     &logger,
	})

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	var err error
	switch cmd {
	case "estimate":
		err = runEstimate(ctx, c, rest, stdout, stderr)
	case "generate":
		err = runGenerate(ctx, c, rest, stdout, stderr)
	case "revise":
		err = runRevise(ctx, c, rest, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}

	if sid := c.SessionID(); sid != "" {
		if werr := os.WriteFile(g.sessionFile, []byte(sid+"\n"), 0o600); werr != nil {
			logger.Warn().Err(werr).Str("file", g.sessionFile).Msg("could not persist session token")
		}
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runEstimate(ctx context.Context, c *client.Client, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("estimate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	height := fs.Float64("height-cm", 0, "body height in centimetres")
	photoPath := fs.String("photo", "", "full-body reference photo")
	if err := fs.Parse(args); err != nil {
		return err
	}
	photo, err := loadPhoto(*photoPath)
	if err != nil {
		return err
	}
	m, err := c.Estimate(ctx, *height, photo)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "chest %d cm, waist %d cm, hips %d cm\n", m.ChestCm, m.WaistCm, m.HipsCm)
	return nil
}

type deliveryFlags struct {
	direct bool
	bucket string
	out    string
}

func (d *deliveryFlags) register(fs *flag.FlagSet) {
	fs.BoolVar(&d.direct, "direct", false, "receive the image inline and upload it through a signed URL")
	fs.StringVar(&d.bucket, "bucket", "", "bucket for direct uploads (server default when empty)")
	fs.StringVar(&d.out, "out", "", "write the image here (direct mode, defaults to <outfitId>.png)")
}

func runGenerate(ctx context.Context, c *client.Client, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		in       client.GenerateInput
		delivery deliveryFlags
		photo    string
	)
	fs.StringVar(&in.Prompt, "prompt", "", "outfit description")
	fs.StringVar(&in.OutfitID, "outfit-id", "", "outfit identifier (server generated when empty)")
	fs.IntVar(&in.Width, "width", 0, "render width")
	fs.IntVar(&in.Height, "height", 0, "render height")
	fs.BoolVar(&in.TryOn, "try-on", false, "render the outfit on the reference photo")
	fs.StringVar(&photo, "photo", "", "full-body reference photo")
	fs.StringVar(&in.UserInfo.FullName, "name", "", "full name")
	fs.StringVar(&in.UserInfo.Email, "email", "", "email")
	fs.Float64Var(&in.UserInfo.HeightCm, "height-cm", 0, "height in centimetres")
	fs.Float64Var(&in.UserInfo.ChestCm, "chest-cm", 0, "chest in centimetres")
	fs.Float64Var(&in.UserInfo.WaistCm, "waist-cm", 0, "waist in centimetres")
	fs.Float64Var(&in.UserInfo.HipsCm, "hips-cm", 0, "hips in centimetres")
	delivery.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return errors.New("-prompt is required")
	}

	p, err := loadPhoto(photo)
	if err != nil {
		return err
	}
	in.Photo = p
	in.DirectUpload = delivery.direct

	img, err := c.Generate(ctx, in)
	if err != nil {
		return err
	}
	return report(ctx, c, img, delivery, stdout)
}

func runRevise(ctx context.Context, c *client.Client, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("revise", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		in       client.ReviseInput
		delivery deliveryFlags
		photo    string
	)
	fs.StringVar(&in.RevisionText, "text", "", "requested edit")
	fs.StringVar(&in.OutfitID, "outfit-id", "", "outfit to revise (latest when empty)")
	fs.StringVar(&photo, "photo", "", "full-body reference photo")
	delivery.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(in.RevisionText) == "" {
		return errors.New("-text is required")
	}

	p, err := loadPhoto(photo)
	if err != nil {
		return err
	}
	in.Photo = p
	in.DirectUpload = delivery.direct

	img, err := c.Revise(ctx, in)
	if err != nil {
		return err
	}
	return report(ctx, c, img, delivery, stdout)
}

// report prints the managed URL, or saves a direct image locally and
// publishes it through a signed URL.
func report(ctx context.Context, c *client.Client, img client.Image, d deliveryFlags, stdout io.Writer) error {
	if img.URL != "" {
		fmt.Fprintf(stdout, "%s %s\n", img.OutfitID, img.URL)
		return nil
	}

	out := d.out
	if out == "" {
		out = img.OutfitID + ".png"
		if img.OutfitID == "" {
			out = "outfit.png"
		}
	}
	if err := os.WriteFile(out, img.Data, 0o644); err != nil {
		return fmt.Errorf("save image: %w", err)
	}

	delivered := c.Deliver(ctx, img, d.bucket)
	if delivered.Fallback {
		ref := delivered.URL
		if len(ref) > 48 {
			ref = ref[:48] + "..."
		}
		fmt.Fprintf(stdout, "%s saved to %s; upload failed (%v), using %s\n", img.OutfitID, out, delivered.Err, ref)
		return nil
	}
	fmt.Fprintf(stdout, "%s %s (saved to %s)\n", img.OutfitID, delivered.URL, out)
	return nil
}

func loadPhoto(path string) (*client.Photo, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	mime := domain.ArtifactMIME
	if format, err := imaging.DetectFormat(data); err == nil {
		mime = format.MIME()
	}
	return &client.Photo{Data: data, MIME: mime}, nil
}

func readSession(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
