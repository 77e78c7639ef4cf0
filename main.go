package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"tarndb/btree"
	"tarndb/common"
	"tarndb/index"
)

const usage = `usage: tarndb <command> [flags] <index file> [args]

commands:
  stat     <file>               print tree statistics
  verify   <file>               check every tree invariant
  print    <file>               print the tree level by level
  get      <file> <key>         print the primary keys of key
  put      <file> <key> <pk>    add pk to key, creating the file if needed
  del      <file> <key> [pk]    remove pk from key, or the whole key
  dump     <file> <out>         write a compressed dump of every pair
  restore  <file> <in>          insert every pair of a dump, creating the file if needed
`

var errUsage = errors.New("invalid arguments")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	cmd := args[0]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	order := fs.Int("order", common.DefaultOrder, "order of a newly created index")
	cacheBytes := fs.Int64("cache", 8<<20, "page cache size in bytes, 0 disables the cache")
	if err := fs.Parse(args[1:]); err != nil {
		return errors.Wrap(errUsage, err.Error())
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return errors.Wrap(errUsage, "missing index file")
	}
	path, rest := rest[0], rest[1:]

	opts := btree.Options{Order: *order, CacheBytes: *cacheBytes}

	switch cmd {
	case "stat":
		return withTree(path, opts, func(tree *btree.BTree) error {
			return printStats(tree, out)
		})
	case "verify":
		return withTree(path, opts, func(tree *btree.BTree) error {
			if err := tree.Verify(); err != nil {
				return err
			}
			fmt.Fprintln(out, "ok")
			return nil
		})
	case "print":
		return withTree(path, opts, func(tree *btree.BTree) error {
			return tree.Print(out)
		})
	case "get":
		if len(rest) != 1 {
			return errors.Wrap(errUsage, "get needs a key")
		}
		return withTree(path, opts, func(tree *btree.BTree) error {
			pks, found, err := tree.FindPrimaryKeys([]byte(rest[0]))
			if err != nil {
				return err
			}
			if !found {
				return errors.Errorf("key %q not found", rest[0])
			}
			for _, pk := range pks {
				fmt.Fprintf(out, "%s\n", pk)
			}
			return nil
		})
	case "put":
		if len(rest) != 2 {
			return errors.Wrap(errUsage, "put needs a key and a primary key")
		}
		return withIndex(path, opts, func(idx *index.BTreeIndex) error {
			return idx.Insert([]byte(rest[0]), []byte(rest[1]))
		})
	case "del":
		if len(rest) != 1 && len(rest) != 2 {
			return errors.Wrap(errUsage, "del needs a key and an optional primary key")
		}
		var pk []byte
		if len(rest) == 2 {
			pk = []byte(rest[1])
		}
		return withTree(path, opts, func(tree *btree.BTree) error {
			removed, err := tree.Delete([]byte(rest[0]), pk)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "removed: %v\n", removed)
			return nil
		})
	case "dump":
		if len(rest) != 1 {
			return errors.Wrap(errUsage, "dump needs an output file")
		}
		if _, err := os.Stat(path); err != nil {
			return errors.Wrapf(err, "opening %s", path)
		}
		return withIndex(path, opts, func(idx *index.BTreeIndex) error {
			f, err := os.Create(rest[0])
			if err != nil {
				return errors.Wrapf(err, "creating %s", rest[0])
			}
			defer f.Close()

			n, err := index.Dump(idx, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "dumped %d keys\n", n)
			return f.Sync()
		})
	case "restore":
		if len(rest) != 1 {
			return errors.Wrap(errUsage, "restore needs an input file")
		}
		return withIndex(path, opts, func(idx *index.BTreeIndex) error {
			f, err := os.Open(rest[0])
			if err != nil {
				return errors.Wrapf(err, "opening %s", rest[0])
			}
			defer f.Close()

			n, err := index.Restore(idx, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "restored %d keys\n", n)
			return idx.Save()
		})
	default:
		return errors.Wrapf(errUsage, "unknown command %q", cmd)
	}
}

// withTree opens an existing index file for commands that must not create one.
func withTree(path string, opts btree.Options, fn func(tree *btree.BTree) error) error {
	tree, err := btree.OpenExisting(path, opts)
	if err != nil {
		return err
	}

	if err := fn(tree); err != nil {
		_ = tree.Close()
		return err
	}
	return tree.Close()
}

func withIndex(path string, opts btree.Options, fn func(idx *index.BTreeIndex) error) error {
	idx, err := index.NewBTreeIndex(path, path, opts.Order, index.WithCacheBytes(opts.CacheBytes))
	if err != nil {
		return err
	}

	if err := fn(idx); err != nil {
		_ = idx.Close()
		return err
	}
	return idx.Close()
}

func printStats(tree *btree.BTree, out io.Writer) error {
	s, err := tree.Stats()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "file:            %s\n", s.Filename)
	fmt.Fprintf(out, "order:           %d\n", s.Order)
	fmt.Fprintf(out, "root:            %v\n", s.Root)
	fmt.Fprintf(out, "height:          %d\n", s.Height)
	fmt.Fprintf(out, "keys:            %d\n", s.Keys)
	fmt.Fprintf(out, "primary keys:    %d\n", s.PrimaryKeys)
	fmt.Fprintf(out, "leaves:          %d\n", s.Leaves)
	fmt.Fprintf(out, "internal nodes:  %d\n", s.InternalNodes)
	fmt.Fprintf(out, "next page id:    %v\n", s.NextAvailablePageID)
	fmt.Fprintf(out, "free pages:      %d\n", s.FreePages)
	return nil
}
