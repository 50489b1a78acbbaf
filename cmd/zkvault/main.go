package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/zkvault/zkvault/auth"
	"github.com/zkvault/zkvault/internal/boundary"
	"github.com/zkvault/zkvault/internal/health"
	"github.com/zkvault/zkvault/internal/vault"
	"github.com/zkvault/zkvault/krypto"
	"github.com/zkvault/zkvault/store"
)

const cliVersion = "0.1.0"

type userError struct {
	msg string
}

func (e userError) Error() string { return e.msg }

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Println(cliVersion)
	case "init":
		err = runInit(os.Args[2:])
	case "change-master":
		err = runChangeMaster(os.Args[2:])
	case "add":
		err = runAdd(os.Args[2:])
	case "get":
		err = runGet(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "delete":
		err = runDelete(os.Args[2:])
	case "health":
		err = runHealth(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
	handleError(err)
}

func handleError(err error) {
	if err == nil {
		return
	}

	var uerr userError
	if errors.As(err, &uerr) {
		fmt.Fprintln(os.Stderr, uerr.Error())
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "unexpected error: %v\n", err)
	os.Exit(2)
}

func openStore(dir string) (*store.SQLiteStore, error) {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	return store.Open(store.Config{
		FilePath: filepath.Join(dir, "vault.db"),
		Logger:   logger,
	})
}

// unlockSession prompts for the master password and unlocks the vault. An
// authentication failure is reported generically: the caller must not be
// able to tell a wrong password from corrupted server data.
func unlockSession(ctx context.Context, st *store.SQLiteStore) (*vault.Session, vault.Bundle, error) {
	bundle, err := st.LoadBundle(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, vault.Bundle{}, userError{msg: "vault not initialised; run init first"}
		}
		return nil, vault.Bundle{}, fmt.Errorf("load bundle: %w", err)
	}

	pw, err := promptPassword("Master password: ")
	if err != nil {
		return nil, vault.Bundle{}, fmt.Errorf("read master password: %w", err)
	}
	defer zeroBytes(pw)

	s, err := vault.Unlock(pw, bundle, vault.DefaultSessionConfig())
	if err != nil {
		if errors.Is(err, krypto.ErrAuthenticationFailure) {
			return nil, vault.Bundle{}, userError{msg: "invalid master password or server error"}
		}
		return nil, vault.Bundle{}, err
	}

	// Migrate legacy-KDF vaults transparently while we hold the password.
	if bundle.NeedsUpgrade() {
		upgraded, err := vault.RewrapBundle(bundle, pw, pw)
		if err == nil {
			if err := st.SaveBundle(ctx, upgraded); err == nil {
				bundle = upgraded
			}
		}
	}

	return s, bundle, nil
}

func runInit(args []string) error {
	dir, fs, err := dirFlagSet("init", args)
	if err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return userError{msg: "unexpected positional arguments"}
	}

	pw, err := promptPassword("Enter master password: ")
	if err != nil {
		return fmt.Errorf("read master password: %w", err)
	}
	defer zeroBytes(pw)

	confirm, err := promptPassword("Confirm master password: ")
	if err != nil {
		return fmt.Errorf("read confirmation password: %w", err)
	}
	defer zeroBytes(confirm)

	if !bytes.Equal(pw, confirm) {
		return userError{msg: "passwords do not match"}
	}
	if err := auth.ValidateMasterPassword(string(pw)); err != nil {
		return userError{msg: err.Error()}
	}

	st, err := openStore(dir)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if _, err := st.LoadBundle(ctx); err == nil {
		return userError{msg: "vault already initialised"}
	}

	bundle, err := vault.NewBundle(pw, krypto.DefaultKDFParams())
	if err != nil {
		return fmt.Errorf("create vault: %w", err)
	}
	if err := st.SaveBundle(ctx, bundle); err != nil {
		return fmt.Errorf("persist vault: %w", err)
	}

	fmt.Println("vault initialised")
	return nil
}

func runChangeMaster(args []string) error {
	dir, _, err := dirFlagSet("change-master", args)
	if err != nil {
		return err
	}

	st, err := openStore(dir)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	bundle, err := st.LoadBundle(ctx)
	if err != nil {
		return userError{msg: "vault not initialised; run init first"}
	}

	oldPw, err := promptPassword("Current master password: ")
	if err != nil {
		return fmt.Errorf("read current password: %w", err)
	}
	defer zeroBytes(oldPw)

	newPw, err := promptPassword("New master password: ")
	if err != nil {
		return fmt.Errorf("read new password: %w", err)
	}
	defer zeroBytes(newPw)

	confirm, err := promptPassword("Confirm new master password: ")
	if err != nil {
		return fmt.Errorf("read confirmation password: %w", err)
	}
	defer zeroBytes(confirm)

	if !bytes.Equal(newPw, confirm) {
		return userError{msg: "passwords do not match"}
	}
	if err := auth.ValidateMasterPassword(string(newPw)); err != nil {
		return userError{msg: err.Error()}
	}

	rotated, err := vault.RewrapBundle(bundle, oldPw, newPw)
	if err != nil {
		if errors.Is(err, krypto.ErrAuthenticationFailure) {
			return userError{msg: "invalid master password or server error"}
		}
		return err
	}
	if err := st.SaveBundle(ctx, rotated); err != nil {
		return fmt.Errorf("persist rotated bundle: %w", err)
	}

	fmt.Println("master password changed")
	return nil
}

func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var dir, typ string
	fs.StringVar(&dir, "dir", "", "vault directory")
	fs.StringVar(&typ, "type", "password", "secret type: password, apikey, env")
	if err := fs.Parse(args); err != nil {
		return userError{msg: "invalid arguments"}
	}
	if dir == "" {
		return userError{msg: "missing required flag: --dir"}
	}

	st, err := openStore(dir)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	s, _, err := unlockSession(ctx, st)
	if err != nil {
		return err
	}
	defer s.Lock()

	input, err := promptSecretInput(typ)
	if err != nil {
		return err
	}

	item, err := s.SealSecret(input)
	if err != nil {
		var viol *boundary.Violation
		if errors.As(err, &viol) {
			return userError{msg: viol.Error()}
		}
		return err
	}
	if err := st.PutItem(ctx, item); err != nil {
		return err
	}

	fmt.Println(item.ID)
	return nil
}

func promptSecretInput(typ string) (boundary.SecretInput, error) {
	in := bufio.NewReader(os.Stdin)
	switch typ {
	case "password":
		title := promptLine(in, "Title: ")
		username := promptLine(in, "Username: ")
		website := promptLine(in, "Website: ")
		secret, err := promptPassword("Password: ")
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
		defer zeroBytes(secret)
		notes := promptLine(in, "Notes (optional): ")
		return boundary.PasswordInput{
			Title: title, Username: username, Website: website,
			Password: string(secret), Notes: notes,
		}, nil
	case "apikey":
		title := promptLine(in, "Title: ")
		service := promptLine(in, "Service: ")
		env := promptLine(in, "Environment: ")
		secret, err := promptPassword("API key: ")
		if err != nil {
			return nil, fmt.Errorf("read api key: %w", err)
		}
		defer zeroBytes(secret)
		notes := promptLine(in, "Notes (optional): ")
		return boundary.APIKeyInput{
			Title: title, ServiceName: service, Environment: env,
			APIKey: string(secret), Notes: notes,
		}, nil
	case "env":
		title := promptLine(in, "Title: ")
		desc := promptLine(in, "Description: ")
		var vars []boundary.EnvVar
		for {
			key := promptLine(in, "Variable name (empty to finish): ")
			if key == "" {
				break
			}
			val, err := promptPassword("Value for " + key + ": ")
			if err != nil {
				return nil, fmt.Errorf("read variable value: %w", err)
			}
			vars = append(vars, boundary.EnvVar{Key: key, Value: string(val)})
			zeroBytes(val)
		}
		if len(vars) == 0 {
			return nil, userError{msg: "at least one variable is required"}
		}
		return boundary.EnvVarsInput{Title: title, Description: desc, Variables: vars}, nil
	default:
		return nil, userError{msg: "unknown secret type: " + typ}
	}
}

func runGet(args []string) error {
	dir, id, err := dirIDFlagSet("get", args)
	if err != nil {
		return err
	}

	st, err := openStore(dir)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	s, _, err := unlockSession(ctx, st)
	if err != nil {
		return err
	}
	defer s.Lock()

	item, err := st.GetItem(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return userError{msg: "item not found"}
		}
		return err
	}

	payload, err := s.OpenSecret(item)
	if err != nil {
		if errors.Is(err, krypto.ErrAuthenticationFailure) {
			return userError{msg: "item cannot be decrypted with this vault key"}
		}
		return err
	}

	switch item.SecretType {
	case boundary.SecretTypePassword:
		fmt.Println(payload.Password)
	case boundary.SecretTypeAPIKey:
		fmt.Println(payload.APIKey)
	case boundary.SecretTypeEnvVars:
		for _, v := range payload.Variables {
			fmt.Printf("%s=%s\n", v.Key, v.Value)
		}
	}
	if payload.Notes != "" {
		fmt.Fprintf(os.Stderr, "notes: %s\n", payload.Notes)
	}
	return nil
}

// runList needs no unlock: listing works from plaintext metadata alone.
func runList(args []string) error {
	dir, _, err := dirFlagSet("list", args)
	if err != nil {
		return err
	}

	st, err := openStore(dir)
	if err != nil {
		return err
	}
	defer st.Close()

	items, err := st.ListItems(context.Background())
	if err != nil {
		return err
	}
	for _, item := range items {
		fmt.Printf("%s\t%s\t%s\n", item.ID, item.SecretType, item.Metadata.Title)
	}
	return nil
}

func runDelete(args []string) error {
	dir, id, err := dirIDFlagSet("delete", args)
	if err != nil {
		return err
	}

	st, err := openStore(dir)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteItem(context.Background(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return userError{msg: "item not found"}
		}
		return err
	}
	fmt.Println("deleted")
	return nil
}

func runHealth(args []string) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var dir, id string
	var checkBreach bool
	fs.StringVar(&dir, "dir", "", "vault directory")
	fs.StringVar(&id, "id", "", "item id")
	fs.BoolVar(&checkBreach, "breach", false, "check the breach corpus (network call)")
	if err := fs.Parse(args); err != nil {
		return userError{msg: "invalid arguments"}
	}
	if dir == "" || id == "" {
		return userError{msg: "missing required flags: --dir and --id"}
	}

	st, err := openStore(dir)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	s, _, err := unlockSession(ctx, st)
	if err != nil {
		return err
	}
	defer s.Lock()

	item, err := st.GetItem(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return userError{msg: "item not found"}
		}
		return err
	}
	payload, err := s.OpenSecret(item)
	if err != nil {
		return err
	}
	if item.SecretType != boundary.SecretTypePassword {
		return userError{msg: "health evaluation applies to password items"}
	}

	others, err := st.ListItems(ctx)
	if err != nil {
		return err
	}

	opts := health.Options{
		CurrentItemID: item.ID,
		OtherItems:    others,
		Decrypt:       s.OpenSecret,
		LastChanged:   item.UpdatedAt,
	}
	if checkBreach {
		opts.CheckBreach = true
		opts.Breach = auth.NewBreachClient().Check
	}

	res := health.Evaluate(ctx, payload.Password, opts)

	fmt.Printf("score: %d/100\n", res.Score)
	fmt.Printf("flags: reused=%t weak=%t old=%t breached=%t\n",
		res.Flags.Reused, res.Flags.Weak, res.Flags.Old, res.Flags.Breached)
	for _, w := range res.Warnings {
		fmt.Printf("  - %s\n", w)
	}
	return nil
}

func dirFlagSet(name string, args []string) (string, *flag.FlagSet, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var dir string
	fs.StringVar(&dir, "dir", "", "vault directory")
	if err := fs.Parse(args); err != nil {
		return "", nil, userError{msg: "invalid arguments"}
	}
	if dir == "" {
		return "", nil, userError{msg: "missing required flag: --dir"}
	}
	return dir, fs, nil
}

func dirIDFlagSet(name string, args []string) (dir, id string, err error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&dir, "dir", "", "vault directory")
	fs.StringVar(&id, "id", "", "item id")
	if err := fs.Parse(args); err != nil {
		return "", "", userError{msg: "invalid arguments"}
	}
	if dir == "" || id == "" {
		return "", "", userError{msg: "missing required flags: --dir and --id"}
	}
	return dir, id, nil
}

func promptLine(in *bufio.Reader, prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: zkvault <command>")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  version")
	fmt.Fprintln(os.Stderr, "  init --dir <vault-dir>")
	fmt.Fprintln(os.Stderr, "  change-master --dir <vault-dir>")
	fmt.Fprintln(os.Stderr, "  add --dir <vault-dir> [--type password|apikey|env]")
	fmt.Fprintln(os.Stderr, "  get --dir <vault-dir> --id <item-id>")
	fmt.Fprintln(os.Stderr, "  list --dir <vault-dir>")
	fmt.Fprintln(os.Stderr, "  delete --dir <vault-dir> --id <item-id>")
	fmt.Fprintln(os.Stderr, "  health --dir <vault-dir> --id <item-id> [--breach]")
}
