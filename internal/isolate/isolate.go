// Package isolate runs programs inside boxes managed by the isolate binary
// (https://github.com/ioi/isolate) with its cgroup support enabled.
package isolate

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/programme-lv/judge/internal/sandbox"
)

type Config struct {
	// Binary is the isolate executable, looked up in PATH when relative.
	Binary string
	// FirstBoxID and MaxBoxes bound the box ids this process may claim, so
	// several judges can share one machine.
	FirstBoxID int
	MaxBoxes   int
	// Path is the PATH given to boxed processes.
	Path string
}

type Isolate struct {
	cfg      Config
	log      *slog.Logger
	idsInUse mapset.Set[int]
	mutex    sync.Mutex
}

func New(cfg Config, log *slog.Logger) *Isolate {
	if cfg.Binary == "" {
		cfg.Binary = "isolate"
	}
	if cfg.MaxBoxes <= 0 {
		cfg.MaxBoxes = 1000
	}
	if cfg.Path == "" {
		cfg.Path = "/usr/local/bin:/usr/bin:/bin"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Isolate{
		cfg:      cfg,
		log:      log,
		idsInUse: mapset.NewThreadUnsafeSet[int](),
	}
}

func (i *Isolate) NewBox() (sandbox.Box, error) {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	id := i.cfg.FirstBoxID
	for i.idsInUse.Contains(id) {
		id++
	}
	if id >= i.cfg.FirstBoxID+i.cfg.MaxBoxes {
		return nil, fmt.Errorf("all %d isolate boxes are in use", i.cfg.MaxBoxes)
	}

	// a previous crash may have left the box initialized
	if err := i.cleanupBox(id); err != nil {
		return nil, err
	}
	path, err := i.initBox(id)
	if err != nil {
		return nil, err
	}

	i.idsInUse.Add(id)
	return newBox(i, id, path), nil
}

func (i *Isolate) releaseBox(id int) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	i.idsInUse.Remove(id)
	return i.cleanupBox(id)
}

func (i *Isolate) cleanupBox(id int) error {
	out, err := exec.Command(i.cfg.Binary, "--cg", "--cleanup", "--box-id", strconv.Itoa(id)).CombinedOutput()
	if err != nil {
		return fmt.Errorf("isolate cleanup box %d: %w: %s", id, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// initBox initializes the box and returns its directory. Files for the
// program go to <dir>/box.
func (i *Isolate) initBox(id int) (string, error) {
	out, err := exec.Command(i.cfg.Binary, "--cg", "--init", "--box-id", strconv.Itoa(id)).Output()
	if err != nil {
		return "", fmt.Errorf("isolate init box %d: %w", id, err)
	}
	return strings.TrimSpace(string(out)), nil
}
