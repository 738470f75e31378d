package upload

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const subdirectoryPermission = 0o777

// Recorder receives every operation outcome, e.g. to persist an audit trail.
type Recorder interface {
	Record(ctx context.Context, op Operation, result OperationResult) error
}

// Manager creates, renames and removes subdirectories of upload type roots.
type Manager struct {
	resolver *Resolver
	fs       afero.Fs
	logger   zerolog.Logger
	recorder Recorder
}

func NewManager(resolver *Resolver, fs afero.Fs, logger zerolog.Logger, recorder Recorder) *Manager {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Manager{
		resolver: resolver,
		fs:       fs,
		logger:   logger.With().Str("component", "directories").Logger(),
		recorder: recorder,
	}
}

// Create makes a new subdirectory named name directly under the root of uploadType.
func (m *Manager) Create(ctx context.Context, uploadType UploadType, name string) OperationResult {
	op := Operation{Kind: OperationCreate, UploadType: uploadType, Path: name}
	return m.finish(ctx, op, m.create(uploadType, name))
}

func (m *Manager) create(uploadType UploadType, name string) OperationResult {
	m.logger.Info().
		Str("upload_type", string(uploadType)).
		Str("subdirectory_name", name).
		Msg("Started creating subdirectory")

	root, err := m.resolver.RootFor(uploadType)
	if err != nil {
		m.logger.Info().Err(err).Msg("Upload type is not configured - creation aborted")
		return failed(KindConfiguration, "Selected upload type is not configured.", err)
	}

	target, err := m.resolver.Resolve(root, name)
	if err != nil {
		m.logger.Info().Err(err).Msg("Subdirectory path leaves upload type root - creation aborted")
		return failed(KindValidation, "Subdirectory name points outside of the upload type directory.", err)
	}

	if _, err := m.fs.Stat(target); err == nil {
		m.logger.Info().Str("path", target).Msg("Subdirectory with this name already exists")
		return failed(KindValidation, "Subdirectory with this name for selected upload type already exists.", nil)
	}

	if err := m.fs.Mkdir(target, subdirectoryPermission); err != nil {
		m.logger.Info().Err(err).Str("path", target).Msg("Error while creating folder")
		return failed(KindIO, "There was an error while trying to create new folder for given upload type.", err)
	}

	m.logger.Info().Str("path", target).Msg("Finished creating subdirectory")
	return succeeded("Subdirectory for selected upload type has been successfully created.")
}

// Remove deletes the subdirectory at relativePath and everything beneath it.
func (m *Manager) Remove(ctx context.Context, uploadType UploadType, relativePath string) OperationResult {
	op := Operation{Kind: OperationRemove, UploadType: uploadType, Path: relativePath}
	return m.finish(ctx, op, m.remove(uploadType, relativePath))
}

func (m *Manager) remove(uploadType UploadType, relativePath string) OperationResult {
	subdirectoryName := leafName(relativePath)

	m.logger.Info().
		Str("upload_type", string(uploadType)).
		Str("subdirectory_name", subdirectoryName).
		Str("current_path", relativePath).
		Msg("Started removing folder")

	if subdirectoryName == "" {
		m.logger.Info().Msg("Removal of the upload type root requested - removal aborted")
		return failed(KindValidation, "Cannot remove main folder!", nil)
	}

	if strings.TrimSpace(string(uploadType)) == "" {
		m.logger.Info().Msg("Upload type has not been provided - removal aborted")
		return failed(KindValidation, "You need to select upload type!", nil)
	}

	root, err := m.resolver.RootFor(uploadType)
	if err != nil {
		m.logger.Info().Err(err).Msg("Upload type is not configured - removal aborted")
		return failed(KindConfiguration, "Selected upload type is not configured.", err)
	}

	if !m.resolver.Exists(root, relativePath) {
		m.logger.Info().Msg("Removed folder does not exist - removal aborted")
		return failed(KindNotFound, "This subdirectory does not exist for current upload type.", nil)
	}

	target, err := m.resolver.Resolve(root, relativePath)
	if err != nil {
		return failed(KindValidation, "This subdirectory does not exist for current upload type.", err)
	}

	if err := m.fs.RemoveAll(target); err != nil {
		m.logger.Info().Err(err).Str("path", target).Msg("Could not remove folder")
		return failed(KindIO, "There was an error when trying to remove subdirectory!", err)
	}

	m.logger.Info().Str("path", target).Msg("Finished removing folder")
	return succeeded("Subdirectory has been successfully removed.")
}

// Rename gives the subdirectory at currentRelativePath a new name at the same parent level.
func (m *Manager) Rename(ctx context.Context, uploadType UploadType, currentRelativePath, newName string) OperationResult {
	op := Operation{Kind: OperationRename, UploadType: uploadType, Path: currentRelativePath, NewName: newName}
	return m.finish(ctx, op, m.rename(uploadType, currentRelativePath, newName))
}

func (m *Manager) rename(uploadType UploadType, currentRelativePath, newName string) OperationResult {
	currentName := leafName(currentRelativePath)

	m.logger.Info().
		Str("upload_type", string(uploadType)).
		Str("subdirectory_current_name", currentName).
		Str("subdirectory_new_name", newName).
		Str("current_path", currentRelativePath).
		Msg("Started renaming subdirectory")

	if currentName == newName {
		m.logger.Info().Msg("Subdirectory name will not change - renaming aborted")
		return failed(KindValidation, "You are trying to change folder name to the same that there already is - action aborted.", nil)
	}

	if newName == "" {
		m.logger.Info().Msg("Subdirectory new name is an empty string - renaming aborted")
		return failed(KindValidation, "New name is an empty string - action aborted.", nil)
	}

	if currentName == "" {
		m.logger.Info().Msg("Subdirectory current name is an empty string - renaming aborted")
		return failed(KindValidation, "Current name is an empty string - action aborted.", nil)
	}

	if strings.TrimSpace(string(uploadType)) == "" {
		m.logger.Info().Msg("Upload type has not been provided - renaming aborted")
		return failed(KindValidation, "Upload type is an empty string - action aborted.", nil)
	}

	if strings.ContainsAny(newName, `/\`) || newName == "." || newName == ".." {
		m.logger.Info().Msg("Subdirectory new name is not a single path segment - renaming aborted")
		return failed(KindValidation, "New name must not contain path separators - action aborted.", nil)
	}

	root, err := m.resolver.RootFor(uploadType)
	if err != nil {
		m.logger.Info().Err(err).Msg("Upload type is not configured - renaming aborted")
		return failed(KindConfiguration, "Selected upload type is not configured.", err)
	}

	currentPath, err := m.resolver.Resolve(root, currentRelativePath)
	if err != nil {
		m.logger.Info().Err(err).Msg("Current path leaves upload type root - renaming aborted")
		return failed(KindValidation, "Target directory for which You try to change name does not exist.", err)
	}

	if _, err := m.fs.Stat(currentPath); err != nil {
		m.logger.Info().Str("path", currentPath).Msg("Target directory for which user tried to change name does not exist")
		return failed(KindNotFound, "Target directory for which You try to change name does not exist.", err)
	}

	// 경로가 파일이면 여기서 걸러진다
	if !m.resolver.Exists(root, currentRelativePath) {
		m.logger.Info().Str("path", currentPath).Msg("Subdirectory with this name does not exist")
		return failed(KindNotFound, "Subdirectory with this name does not exist!", nil)
	}

	parent := filepath.Dir(currentPath)
	newPath := m.resolver.SubdirectoryPath(parent, newName)

	if m.resolver.Exists(parent, newName) {
		m.logger.Info().Str("path", newPath).Msg("Subdirectory with this name already exists - renaming aborted")
		return failed(KindValidation, "Cannot change subdirectory name! Subdirectory with this name already exists.", nil)
	}

	if err := m.fs.Rename(currentPath, newPath); err != nil {
		m.logger.Info().Err(err).Str("from", currentPath).Str("to", newPath).Msg("Error while renaming folder")
		return failed(KindIO, "There was an error when renaming the folder! Most likely due to unallowed characters used in name.", err)
	}

	m.logger.Info().Str("path", newPath).Msg("Finished renaming subdirectory")
	return succeeded("Folder name has been successfully changed.")
}

func (m *Manager) finish(ctx context.Context, op Operation, result OperationResult) OperationResult {
	record(ctx, m.recorder, m.logger, op, result)
	return result
}

func record(ctx context.Context, recorder Recorder, logger zerolog.Logger, op Operation, result OperationResult) {
	if recorder == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := recorder.Record(ctx, op, result); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn().Err(err).Str("operation", string(op.Kind)).Msg("failed to record operation")
	}
}
