// Package project implements the top-level project file: the fixed header
// (magic, version, flags), the Project info tag, and the recursive
// System-then-per-instance blocks that make up everything a host UI needs
// to resume a disassembly-and-emulation session.
package project

import (
	"fmt"

	"go.uber.org/zap"

	"nesdis/internal/addr"
	"nesdis/internal/binio"
	"nesdis/internal/instance"
	"nesdis/internal/system"
)

// magic is the project file's fixed leading 8 bytes.
const magic uint64 = 0x8781A90AFDE1F317

// projectInfoTagID is the varint id written ahead of the Project info
// tag's abbreviation string, leaving room for other top-of-file tag kinds
// in later format versions.
const projectInfoTagID uint64 = 1

// Project is one loaded (or about-to-be-saved) disassembly session: the
// static program database plus every live emulation instance running
// against it. ID and Abbreviation are the Project info tag's payload -- a
// host UI's project list shows Abbreviation, ID disambiguates two projects
// that happen to share one.
type Project struct {
	ID           uint64
	Abbreviation string

	System    *system.System
	Instances []*instance.Instance
}

// New wraps a freshly-built System into a new, instance-less Project.
func New(id uint64, abbreviation string, sys *system.System) *Project {
	return &Project{ID: id, Abbreviation: abbreviation, System: sys}
}

// AddInstance registers a running instance with the project, so Save
// includes it in the per-instance block sequence.
func (p *Project) AddInstance(in *instance.Instance) {
	p.Instances = append(p.Instances, in)
}

// Save writes the complete project file: header, Project info tag, System
// block, then one block per instance, in that order. Returns the
// first I/O error encountered, if any -- binio.Writer's errors are sticky,
// so every write after the first failure is a cheap no-op rather than a
// cascade of checks.
func Save(w *binio.Writer, p *Project) error {
	w.WriteFixedUint64(magic)
	w.WriteFixedUint32(addr.CurrentSaveFileVersion)
	w.WriteFixedUint32(0) // flags, reserved

	w.Section(projectInfoTagID, p.Abbreviation, func(w *binio.Writer) {
		w.WriteVarUint(p.ID)
	})

	p.System.Save(w)

	w.WriteVarUint(uint64(len(p.Instances)))
	for _, in := range p.Instances {
		in.Save(w)
	}

	return w.Err()
}

// Load reads a complete project file written by Save. Every component is
// read and resolved entirely in local variables before Project is
// constructed, so a truncated or corrupt stream never publishes partial
// state to the caller -- partial project files are rejected wholesale.
// The reader's sticky error is checked when system.Load returns and once
// more at the very end, after every instance read has had the chance to
// fail.
func Load(r *binio.Reader, log *zap.Logger) (*Project, error) {
	gotMagic := r.ReadFixedUint64()
	if gotMagic != magic {
		return nil, fmt.Errorf("project: not a project file (bad magic %#x)", gotMagic)
	}

	version := r.ReadFixedUint32()
	if version > addr.CurrentSaveFileVersion {
		return nil, fmt.Errorf("project: file version %#x is newer than this build supports (%#x)", version, addr.CurrentSaveFileVersion)
	}
	_ = r.ReadFixedUint32() // flags, reserved

	_, abbreviation := r.ReadSectionTag()
	id := r.ReadVarUint()

	sys, err := system.Load(r)
	if err != nil {
		return nil, err
	}

	instanceCount := int(r.ReadVarUint())
	instances := make([]*instance.Instance, instanceCount)
	for i := range instances {
		instances[i] = instance.Load(r, sys, log)
	}

	if err := r.Err(); err != nil {
		return nil, err
	}

	return &Project{
		ID:           id,
		Abbreviation: abbreviation,
		System:       sys,
		Instances:    instances,
	}, nil
}
