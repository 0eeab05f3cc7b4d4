package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"

	"github.com/lanpeer/lanpeer/internal/node"
	"github.com/lanpeer/lanpeer/internal/peerindex"
)

// runShell drives the interactive peer/resource browser until ctx is
// cancelled. It never touches the node's components directly beyond
// the read-only accessors and the downloader, mirroring the way the
// reference's client package only ever calls into core from the UI
// layer.
func runShell(ctx context.Context, n *node.Node) {
	for {
		if ctx.Err() != nil {
			return
		}

		var peers []peerindex.Flattened
		err := spinner.New().
			Title("listening for peers...").
			ActionWithErr(func(sctx context.Context) error {
				peers = waitForPeers(sctx, n)
				return nil
			}).
			Run()
		if err != nil || ctx.Err() != nil {
			return
		}

		if len(peers) == 0 {
			fmt.Println(INFO.Render("no peers announced a resource yet, retrying..."))
			select {
			case <-time.After(2 * time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}

		choice, ok := promptResourceChoice(peers)
		if !ok {
			continue
		}

		runDownload(ctx, n, choice)
	}
}

// waitForPeers blocks briefly for the peer index to become non-empty,
// giving the broadcaster/receiver loop a window to populate it.
func waitForPeers(ctx context.Context, n *node.Node) []peerindex.Flattened {
	deadline := time.After(5 * time.Second)
	for {
		if all := n.Peers.All(); len(all) > 0 {
			return all
		}
		select {
		case <-time.After(200 * time.Millisecond):
		case <-deadline:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func promptResourceChoice(peers []peerindex.Flattened) (peerindex.Flattened, bool) {
	options := make([]huh.Option[int], len(peers))
	for i, p := range peers {
		label := fmt.Sprintf("%s (%d bytes) @ %s:%d", p.Resource.Name, p.Resource.Size, p.Addr.IP, p.Addr.Port)
		options[i] = huh.NewOption(label, i)
	}

	var selected int
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("choose a resource to download").
				Options(options...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return peerindex.Flattened{}, false
	}
	return peers[selected], true
}

func downloadBar(maxBytes int64, desc string) *progressbar.ProgressBar {
	writer := ansi.NewAnsiStdout()
	return progressbar.NewOptions64(
		maxBytes,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowTotalBytes(true),
		progressbar.OptionShowBytes(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(writer, "\n")
		}),
	)
}

func runDownload(ctx context.Context, n *node.Node, choice peerindex.Flattened) {
	bar := downloadBar(int64(choice.Resource.Size), choice.Resource.Name)

	received, total, err := n.Downloader.Download(ctx, choice.Addr.IP, choice.Addr.Port, 0, choice.Resource.Name,
		func(r, t int64) {
			bar.Set64(r)
			_ = t
		})
	if err != nil {
		fmt.Println(ERROR.Render(fmt.Sprintf("download failed: %v", err)))
		return
	}
	if received < total {
		fmt.Println(INFO.Render(fmt.Sprintf("partial transfer: %d/%d bytes; re-selecting this resource downloads it again from the start", received, total)))
		return
	}
	fmt.Println(SUCCESS.Render(fmt.Sprintf("%s: %d bytes received", choice.Resource.Name, received)))
}
