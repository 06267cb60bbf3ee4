package tools

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/atotto/clipboard"
)

// NewSystemTools builds the system category: notify, clipboard_read,
// clipboard_write, open_url, open_file. Clipboard uses atotto/clipboard,
// the cross-platform clipboard library present across the pack's agent
// repos, instead of shelling out to pbcopy/xclip/clip.exe directly.
func NewSystemTools(sandbox *Sandbox) []Tool {
	return []Tool{
		{
			Name:        "notify",
			Category:    CategorySystem,
			Description: "Show a desktop notification.",
			Args: []ArgDescriptor{
				{Name: "title", Type: ArgString, Required: true},
				{Name: "message", Type: ArgString, Required: true},
			},
			Handler: notifyHandler,
		},
		{
			Name:        "clipboard_read",
			Category:    CategorySystem,
			Description: "Read the current clipboard text content.",
			Handler:     clipboardReadHandler,
		},
		{
			Name:        "clipboard_write",
			Category:    CategorySystem,
			Description: "Write text to the clipboard.",
			Args:        []ArgDescriptor{{Name: "text", Type: ArgString, Required: true}},
			Handler:     clipboardWriteHandler,
		},
		{
			Name:        "open_url",
			Category:    CategorySystem,
			Description: "Open a URL in the default browser.",
			Args:        []ArgDescriptor{{Name: "url", Type: ArgString, Required: true}},
			Handler:     openURLHandler,
		},
		{
			Name:        "open_file",
			Category:    CategorySystem,
			Description: "Open a file within the sandbox with its default application.",
			Args:        []ArgDescriptor{{Name: "path", Type: ArgString, Required: true}},
			Handler:     openFileHandler,
		},
	}
}

func notifyHandler(ctx Context, args map[string]any) (Result, error) {
	title, err := extractString(args, "title", true)
	if err != nil {
		return resultFor(err), nil
	}
	message, err := extractString(args, "message", true)
	if err != nil {
		return resultFor(err), nil
	}

	if err := showNotification(ctx, title, message); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to show notification: %s", err)}, nil
	}
	return Result{Success: true, Data: map[string]any{"shown": true}}, nil
}

// showNotification has no grounded cross-platform library available (no
// desktop-notification dependency is wired anywhere in this module), so it
// shells out directly the same way openWithDefaultApp does.
func showNotification(ctx Context, title, message string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", message, title)
		cmd = exec.CommandContext(ctx.Context, "osascript", "-e", script)
	case "windows":
		script := fmt.Sprintf("[reflection.assembly]::loadwithpartialname('System.Windows.Forms'); [System.Windows.Forms.MessageBox]::Show(%q, %q)", message, title)
		cmd = exec.CommandContext(ctx.Context, "powershell", "-Command", script)
	default:
		cmd = exec.CommandContext(ctx.Context, "notify-send", title, message)
	}
	return cmd.Run()
}

func clipboardReadHandler(ctx Context, args map[string]any) (Result, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to read clipboard: %s", err)}, nil
	}
	return Result{Success: true, Data: map[string]any{"text": text}}, nil
}

func clipboardWriteHandler(ctx Context, args map[string]any) (Result, error) {
	if err := guardDestructive(ctx); err != nil {
		return resultFor(err), nil
	}
	text, err := extractString(args, "text", true)
	if err != nil {
		return resultFor(err), nil
	}
	if err := clipboard.WriteAll(text); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to write clipboard: %s", err)}, nil
	}
	return Result{Success: true, Data: map[string]any{"written": true}}, nil
}

func openURLHandler(ctx Context, args map[string]any) (Result, error) {
	url, err := extractString(args, "url", true)
	if err != nil {
		return resultFor(err), nil
	}
	if err := openWithDefaultApp(ctx, url); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to open url: %s", err)}, nil
	}
	return Result{Success: true, Data: map[string]any{"opened": url}}, nil
}

func openFileHandler(ctx Context, args map[string]any) (Result, error) {
	rawPath, err := extractString(args, "path", true)
	if err != nil {
		return resultFor(err), nil
	}
	resolved, err := guardPath(ctx, rawPath, false)
	if err != nil {
		return resultFor(err), nil
	}
	if err := openWithDefaultApp(ctx, resolved); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to open file: %s", err)}, nil
	}
	return Result{Success: true, Data: map[string]any{"opened": rawPath}}, nil
}

// openWithDefaultApp shells out to the platform's own "open this" launcher.
// There is no cross-platform library for this in the pack; the ecosystem's
// standard approach (browser.OpenURL-style helpers) is itself a thin wrapper
// around these same three commands, so invoking them directly here avoids a
// dependency that would add nothing over three exec.Command branches.
func openWithDefaultApp(ctx Context, target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx.Context, "open", target)
	case "windows":
		cmd = exec.CommandContext(ctx.Context, "rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.CommandContext(ctx.Context, "xdg-open", target)
	}
	return cmd.Run()
}
