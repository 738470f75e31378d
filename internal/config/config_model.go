package config

var Conf Config

type Config struct {
	Server     Server     `mapstructure:"server" json:"server" yaml:"server"`
	Datasource Datasource `mapstructure:"database" json:"database" yaml:"database"`
	Uploads    Uploads    `mapstructure:"uploads" json:"uploads" yaml:"uploads"`
	Log        Log        `mapstructure:"log" json:"log" yaml:"log"`
}

type Server struct {
	Port               string `mapstructure:"port" json:"port" yaml:"port"`
	WebdavEnabled      bool   `mapstructure:"webdav_enabled" json:"webdavEnabled" yaml:"webdav_enabled"`
	WebdavUser         string `mapstructure:"webdav_user" json:"webdavUser" yaml:"webdav_user"`
	WebdavPasswordHash string `mapstructure:"webdav_password_hash" json:"-" yaml:"webdav_password_hash"`
	// 계정 없이 /dav 를 여는 것을 명시적으로 허용한다
	WebdavAllowAnonymous bool `mapstructure:"webdav_allow_anonymous" json:"webdavAllowAnonymous" yaml:"webdav_allow_anonymous"`
}

type Datasource struct {
	URL string `mapstructure:"url" json:"url" yaml:"url"`
}

// Uploads는 업로드 타입별 루트 디렉토리와 이동 정책
type Uploads struct {
	Types              map[string]string `mapstructure:"types" json:"types" yaml:"types"`
	ConflictPolicy     string            `mapstructure:"conflict_policy" json:"conflictPolicy" yaml:"conflict_policy"`
	FollowSymlinks     bool              `mapstructure:"follow_symlinks" json:"followSymlinks" yaml:"follow_symlinks"`
	CreateMissingRoots bool              `mapstructure:"create_missing_roots" json:"createMissingRoots" yaml:"create_missing_roots"`
}

type Log struct {
	Level  string `mapstructure:"level" json:"level" yaml:"level"`
	Pretty bool   `mapstructure:"pretty" json:"pretty" yaml:"pretty"`
}
