package mounter

import (
	"os"
	"path/filepath"
	"sync"

	mount "k8s.io/mount-utils"
)

// FakeMounter records mounts like mount.FakeMounter and additionally
// populates the mount point with the fixture tree registered for the source,
// so code reading the mounted filesystem can be exercised without root
type FakeMounter struct {
	*mount.FakeMounter

	mutex sync.Mutex
	// Fixtures maps a device path onto a directory copied into the mount point
	Fixtures map[string]string
	// MountErrors fails the mount of a device path
	MountErrors map[string]error
	populated   map[string]bool
}

func NewFakeMounter(fixtures map[string]string) *FakeMounter {
	if fixtures == nil {
		fixtures = map[string]string{}
	}
	return &FakeMounter{
		FakeMounter: mount.NewFakeMounter(nil),
		Fixtures:    fixtures,
		MountErrors: map[string]error{},
		populated:   map[string]bool{},
	}
}

func (f *FakeMounter) Mount(source string, target string, fstype string, options []string) error {
	f.mutex.Lock()
	err := f.MountErrors[source]
	fixture, ok := f.Fixtures[source]
	f.mutex.Unlock()
	if err != nil {
		return err
	}

	if err := f.FakeMounter.Mount(source, target, fstype, options); err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := copyTree(fixture, target); err != nil {
		return err
	}
	f.mutex.Lock()
	f.populated[canonical(target)] = true
	f.mutex.Unlock()
	return nil
}

func (f *FakeMounter) Unmount(target string) error {
	if err := f.FakeMounter.Unmount(target); err != nil {
		return err
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()
	key := canonical(target)
	if !f.populated[key] {
		return nil
	}
	delete(f.populated, key)

	entries, err := os.ReadDir(target)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(target, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Mounted returns the paths currently mounted
func (f *FakeMounter) Mounted() []string {
	mps, _ := f.List()
	paths := make([]string, 0, len(mps))
	for _, mp := range mps {
		paths = append(paths, mp.Path)
	}
	return paths
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm()|0700)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, content, info.Mode().Perm())
	})
}
