// Package cab reads and writes cabinet archives and models the metadata
// of the files stored in them.
//
// A [Cabinet] parses the header, folder, and file tables of a cabinet
// and hands out [FileInfo] entries. Entries obtained from enumeration
// arrive fully populated; an entry constructed from just a path and a
// cabinet resolves its folder index lazily, the first time it is asked
// for, by re-reading the cabinet's file table:
//
//	c, err := cab.Open("setup.cab")
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	fi, err := cab.NewEntry(c, `docs\readme.txt`)
//	if err != nil {
//	    return err
//	}
//	folder, err := fi.FolderIndex() // resolves against the cabinet
//
// Entry metadata can be persisted as a [snapshot.Record] and restored
// later; the owning-cabinet reference does not survive a round trip,
// only the scalar fields do.
//
// Folder data compressed with MSZIP is supported for both reading and
// writing. Quantum and LZX folders can be enumerated but not extracted.
package cab
