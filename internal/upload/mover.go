package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/otiai10/copy"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ConflictPolicy decides what happens to a source file whose name already exists in the target.
type ConflictPolicy string

const (
	ConflictOverwrite ConflictPolicy = "overwrite"
	ConflictSkip      ConflictPolicy = "skip"
	ConflictRename    ConflictPolicy = "rename"
	ConflictFail      ConflictPolicy = "fail"
)

const DefaultConflictPolicy = ConflictSkip

// ParseConflictPolicy accepts overwrite|skip|rename|fail (case-insensitive). "" yields fallback.
func ParseConflictPolicy(raw string, fallback ConflictPolicy) (ConflictPolicy, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return fallback, nil
	}

	policy := ConflictPolicy(normalized)
	switch policy {
	case ConflictOverwrite, ConflictSkip, ConflictRename, ConflictFail:
		return policy, nil
	default:
		return "", fmt.Errorf("invalid conflict policy: %s", raw)
	}
}

// MoveRequest carries the decoded "move data" intent.
type MoveRequest struct {
	CurrentUploadType   UploadType
	TargetUploadType    UploadType
	CurrentSubdirectory string
	TargetSubdirectory  string
	RemoveCurrent       bool
	// ConflictPolicy는 비어 있으면 Mover 기본값을 사용
	ConflictPolicy ConflictPolicy
}

// Mover copies a subdirectory of one upload type into another, optionally removing the source.
// Copying runs on the host filesystem; fs is used for the checks and the source removal.
type Mover struct {
	resolver      *Resolver
	fs            afero.Fs
	logger        zerolog.Logger
	recorder      Recorder
	defaultPolicy ConflictPolicy
}

func NewMover(resolver *Resolver, fs afero.Fs, logger zerolog.Logger, recorder Recorder, defaultPolicy ConflictPolicy) *Mover {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if defaultPolicy == "" {
		defaultPolicy = DefaultConflictPolicy
	}
	return &Mover{
		resolver:      resolver,
		fs:            fs,
		logger:        logger.With().Str("component", "mover").Logger(),
		recorder:      recorder,
		defaultPolicy: defaultPolicy,
	}
}

func (m *Mover) DefaultPolicy() ConflictPolicy {
	return m.defaultPolicy
}

// MoveData copies the current subdirectory into the target one, merging into existing folders.
func (m *Mover) MoveData(ctx context.Context, req MoveRequest) OperationResult {
	op := Operation{
		Kind:             OperationMove,
		UploadType:       req.CurrentUploadType,
		Path:             req.CurrentSubdirectory,
		TargetUploadType: req.TargetUploadType,
		TargetPath:       req.TargetSubdirectory,
	}
	result := m.moveData(req)
	record(ctx, m.recorder, m.logger, op, result)
	return result
}

func (m *Mover) moveData(req MoveRequest) OperationResult {
	policy := req.ConflictPolicy
	if policy == "" {
		policy = m.defaultPolicy
	}

	m.logger.Info().
		Str("current_upload_type", string(req.CurrentUploadType)).
		Str("target_upload_type", string(req.TargetUploadType)).
		Str("current_subdirectory", req.CurrentSubdirectory).
		Str("target_subdirectory", req.TargetSubdirectory).
		Bool("remove_current", req.RemoveCurrent).
		Str("conflict_policy", string(policy)).
		Msg("Started moving data between upload types")

	currentRoot, err := m.resolver.RootFor(req.CurrentUploadType)
	if err != nil {
		m.logger.Info().Err(err).Msg("Current upload type is not configured - move aborted")
		return failed(KindConfiguration, "Current upload type is not configured.", err)
	}
	targetRoot, err := m.resolver.RootFor(req.TargetUploadType)
	if err != nil {
		m.logger.Info().Err(err).Msg("Target upload type is not configured - move aborted")
		return failed(KindConfiguration, "Target upload type is not configured.", err)
	}

	if leafName(req.CurrentSubdirectory) == "" {
		m.logger.Info().Msg("Current subdirectory is the upload type root - move aborted")
		return failed(KindValidation, "You need to select the subdirectory to move data from!", nil)
	}

	if !m.resolver.Exists(currentRoot, req.CurrentSubdirectory) {
		m.logger.Info().Msg("Current subdirectory does not exist - move aborted")
		return failed(KindNotFound, "This subdirectory does not exist for current upload type.", nil)
	}

	sourcePath, err := m.resolver.Resolve(currentRoot, req.CurrentSubdirectory)
	if err != nil {
		return failed(KindValidation, "This subdirectory does not exist for current upload type.", err)
	}
	targetPath, err := m.resolver.Resolve(targetRoot, req.TargetSubdirectory)
	if err != nil {
		m.logger.Info().Err(err).Msg("Target subdirectory leaves upload type root - move aborted")
		return failed(KindValidation, "Target subdirectory points outside of the upload type directory.", err)
	}

	if sourcePath == targetPath {
		m.logger.Info().Msg("Source and target are the same directory - move aborted")
		return failed(KindValidation, "Current and target folder are the same - action aborted.", nil)
	}
	if strings.HasPrefix(targetPath, sourcePath+string(filepath.Separator)) {
		m.logger.Info().Msg("Target is nested in source - move aborted")
		return failed(KindValidation, "Cannot move data into a subdirectory of itself.", nil)
	}
	if strings.HasPrefix(sourcePath, targetPath+string(filepath.Separator)) {
		m.logger.Info().Msg("Target contains source - move aborted")
		return failed(KindValidation, "Cannot move data into a folder that contains it.", nil)
	}

	if info, err := m.fs.Stat(targetPath); err == nil && !info.IsDir() {
		m.logger.Info().Str("path", targetPath).Msg("Target exists and is not a directory - move aborted")
		return failed(KindValidation, "Target subdirectory is a file - action aborted.", nil)
	}

	if err := copy.Copy(sourcePath, targetPath, m.copyOptions(policy)); err != nil {
		if errors.Is(err, ErrConflict) {
			m.logger.Info().Err(err).Msg("Conflicting file found while copying - move aborted")
			return failed(KindValidation, "Target folder already contains a file with the same name - action aborted.", err)
		}
		m.logger.Info().Err(err).Msg("Error while copying data")
		return failed(KindIO, "There was an error while copying data between upload types.", err)
	}
	m.logger.Info().Str("from", sourcePath).Str("to", targetPath).Msg("Finished copying data")

	if !req.RemoveCurrent {
		return succeeded("Data has been successfully copied.")
	}

	if err := m.fs.RemoveAll(sourcePath); err != nil {
		m.logger.Info().Err(err).Str("path", sourcePath).Msg("Data copied but current folder could not be removed")
		return partial("Data has been copied, but the current folder could not be removed.", err)
	}

	m.logger.Info().Str("path", sourcePath).Msg("Finished moving data")
	return succeeded("Data has been successfully moved.")
}

func (m *Mover) copyOptions(policy ConflictPolicy) copy.Options {
	return copy.Options{
		OnSymlink: func(string) copy.SymlinkAction {
			return copy.Shallow
		},
		OnDirExists: func(string, string) copy.DirExistsAction {
			return copy.Merge
		},
		Skip: func(srcInfo os.FileInfo, src, dest string) (bool, error) {
			if srcInfo.IsDir() {
				return false, nil
			}
			destInfo, err := m.fs.Stat(dest)
			if err != nil {
				if os.IsNotExist(err) {
					return false, nil
				}
				return false, err
			}
			return m.resolveConflict(policy, src, dest, destInfo.IsDir())
		},
	}
}

// resolveConflict returns true when the file must not be copied to dest by the caller.
func (m *Mover) resolveConflict(policy ConflictPolicy, src, dest string, destIsDir bool) (bool, error) {
	switch policy {
	case ConflictOverwrite:
		if destIsDir {
			return false, fmt.Errorf("%w: %s is a directory", ErrConflict, dest)
		}
		return false, nil
	case ConflictRename:
		renamed, err := m.renamedDestination(dest)
		if err != nil {
			return false, err
		}
		m.logger.Debug().Str("from", src).Str("to", renamed).Msg("Copying conflicting file under a new name")
		if err := copy.Copy(src, renamed); err != nil {
			return false, err
		}
		return true, nil
	case ConflictFail:
		return false, fmt.Errorf("%w: %s", ErrConflict, dest)
	default:
		m.logger.Debug().Str("path", dest).Msg("Keeping existing file")
		return true, nil
	}
}

// renamedDestination finds the first free "name (n).ext" next to dest.
func (m *Mover) renamedDestination(dest string) (string, error) {
	dir := filepath.Dir(dest)
	base := filepath.Base(dest)
	nameWithoutExt := base
	ext := ""
	if !(strings.HasPrefix(base, ".") && strings.Count(base, ".") == 1) {
		ext = filepath.Ext(base)
		nameWithoutExt = strings.TrimSuffix(base, ext)
	}

	for i := 1; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", nameWithoutExt, i, ext))
		if _, err := m.fs.Stat(candidate); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return "", err
		}
		return candidate, nil
	}
}
