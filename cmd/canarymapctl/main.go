// Command canarymapctl is a cobra CLI over mapcodec and liveengine,
// exposing load/convert/serve/watch subcommands for parsing map files,
// converting between formats, and running or connecting to a
// LiveEngine server.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/rme-go/canary-core/internal/bytestream"
	"github.com/rme-go/canary-core/internal/config"
	"github.com/rme-go/canary-core/internal/liveengine"
	"github.com/rme-go/canary-core/internal/mapcodec"
	"github.com/rme-go/canary-core/internal/mapmodel"
	"github.com/rme-go/canary-core/internal/mlog"
)

var rootCmd = &cobra.Command{
	Use:   "canarymapctl",
	Short: "Load, convert, and serve canary-core maps",
}

func main() {
	rootCmd.AddCommand(loadCmd, convertCmd, serveCmd, watchCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readerFor(path string) (*bytestream.Reader, error) {
	dir, file := splitPath(path)
	fs := osfs.New(dir)
	return bytestream.OpenReader(fs, file)
}

func splitPath(path string) (dir, file string) {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i], path[i+1:]
		}
	}
	return ".", path
}

var loadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Parse a map file and print a load report summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := readerFor(args[0])
		if err != nil {
			return err
		}
		_, report, err := mapcodec.Load(r, mapcodec.FormatA, mapcodec.LoaderConfig{})
		if err != nil {
			return err
		}
		fmt.Printf("format=%s delegated=%v tiles=%d houses=%d towns=%d zones=%d warnings=%d\n",
			report.Format, report.Delegated, report.TileCount, report.HouseCount, report.TownCount, report.ZoneCount, len(report.Warnings))
		for _, w := range report.Warnings {
			fmt.Printf("  warning: %s: %s\n", w.Code, w.Message)
		}
		return nil
	},
}

var convertTo string

var convertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Cross-format conversion via MapModel",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := readerFor(args[0])
		if err != nil {
			return err
		}
		model, _, err := mapcodec.Load(r, mapcodec.FormatA, mapcodec.LoaderConfig{})
		if err != nil {
			return err
		}

		var to mapcodec.Format
		switch convertTo {
		case "a":
			to = mapcodec.FormatA
		case "b":
			to = mapcodec.FormatB
		default:
			return fmt.Errorf("canarymapctl: --to must be \"a\" or \"b\", got %q", convertTo)
		}

		data := mapcodec.Save(model, to, mapcodec.SaverConfig{})
		return os.WriteFile(args[1], data, 0o644)
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertTo, "to", "a", "target format: a or b")
}

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a LiveEngine server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveConfigPath == "" {
			return fmt.Errorf("canarymapctl: --config is required")
		}
		listenAddr, srvCfg, err := config.LoadServerConfig(serveConfigPath)
		if err != nil {
			return err
		}

		log := mlog.New("canarymapctl-serve: ")
		provider := &memoryProvider{model: mapmodel.New()}
		srv := liveengine.NewServer(provider, srvCfg)

		ln, err := net.Listen("tcp", listenAddr)
		if err != nil {
			return err
		}
		log.Printf("listening on %s", ln.Addr())

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return srv.Serve(ctx, ln)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "path to an HCL server config file")
}

var (
	watchName     string
	watchPassword string
)

var watchCmd = &cobra.Command{
	Use:   "watch <host:port>",
	Short: "Connect as a LiveEngine client and log cursor/chat/tile-update traffic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := mlog.New("canarymapctl-watch: ")
		cl := liveengine.NewClient(args[0], watchName, watchPassword)
		cl.OnCursor = func(id uint32, x, y int32, z uint16) {
			log.Printf("cursor client=%d x=%d y=%d z=%d", id, x, y, z)
		}
		cl.OnChat = func(id uint32, name, msg string) {
			log.Printf("chat client=%d name=%s: %s", id, name, msg)
		}
		cl.OnTileUpdate = func(diffs []liveengine.TileDiff) {
			log.Printf("tile_update count=%d", len(diffs))
		}
		cl.OnClientList = func(clients []liveengine.ClientInfo) {
			log.Printf("client_list count=%d", len(clients))
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return cl.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchName, "name", "watcher", "display name to present on login")
	watchCmd.Flags().StringVar(&watchPassword, "password", "", "server password")
}

// memoryProvider is the default liveengine.MapProvider backing `serve`
// when no persistent store is configured: an empty in-memory model
// that accumulates whatever TILE_UPDATEs clients push.
type memoryProvider struct {
	model *mapmodel.MapModel
}

func (p *memoryProvider) Tiles(xMin, yMin, xMax, yMax int32, z uint8) []*mapmodel.Tile {
	var out []*mapmodel.Tile
	for _, t := range p.model.SortedTiles() {
		if t.Position.Z != z {
			continue
		}
		x, y := int32(t.Position.X), int32(t.Position.Y)
		if x < xMin || x > xMax || y < yMin || y > yMax {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (p *memoryProvider) ApplyTileUpdate(d liveengine.TileDiff) liveengine.TileDiff {
	pos := mapmodel.Position{X: uint16(d.X), Y: uint16(d.Y), Z: d.Z}
	if d.Flags&liveengine.TileUpdateFlagCleared != 0 {
		p.model.DeleteTile(pos, true)
		return d
	}
	tile := &mapmodel.Tile{Position: pos}
	if d.GroundID != 0 {
		tile.Ground = &mapmodel.Item{ServerID: d.GroundID}
	}
	for _, it := range d.Items {
		subtype := uint16(it.Subtype)
		tile.Items = append(tile.Items, &mapmodel.Item{ServerID: it.ItemID, Subtype: &subtype})
	}
	if d.Flags&liveengine.TileUpdateFlagHasHouse != 0 {
		tile.HasHouse = true
		tile.HouseID = d.HouseID
	}
	p.model.PutTile(tile, true)
	return d
}
