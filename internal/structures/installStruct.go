package structures

// InstallConfig описывает всё, что пользователь выбрал для установки.
// Разделы верхнего уровня совпадают с сохраняемым YAML-документом.
type InstallConfig struct {
	Locales        Locales        `yaml:"locales"`
	Mirrors        Mirrors        `yaml:"mirrors"`
	Disks          Disks          `yaml:"disks"`
	DiskEncryption DiskEncryption `yaml:"disk_encryption"`
	Swap           Swap           `yaml:"swap"`
	Bootloader     Bootloader     `yaml:"bootloader"`
	System         System         `yaml:"system"`
	Users          []User         `yaml:"users"`
}

type Locales struct {
	Language       string `yaml:"language"`
	Encoding       string `yaml:"encoding"`
	KeyboardLayout string `yaml:"keyboard_layout"`
}

type Mirrors struct {
	Regions []string `yaml:"regions"`
	Custom  []string `yaml:"custom_servers"`
}

// Disks - целевое устройство и режим разметки
type Disks struct {
	Device     string          `yaml:"device"`
	Mode       string          `yaml:"mode"` // "best_effort" или "manual"
	Label      string          `yaml:"label"`
	Wipe       bool            `yaml:"wipe"`
	Align      string          `yaml:"align"`
	Partitions []PartitionSpec `yaml:"partitions"`
}

// PartitionSpec - раздел, введённый вручную. Start и Size задаются в байтах.
type PartitionSpec struct {
	Role         string   `yaml:"role"`
	Filesystem   string   `yaml:"filesystem"`
	Start        uint64   `yaml:"start"`
	Size         uint64   `yaml:"size"`
	Flags        []string `yaml:"flags"`
	Mountpoint   string   `yaml:"mountpoint"`
	MountOptions string   `yaml:"mount_options"`
	Encrypt      bool     `yaml:"encrypt"`
}

type DiskEncryption struct {
	Type         string `yaml:"type"` // "none" или "luks"
	Password     string `yaml:"password,omitempty"`
	Confirm      string `yaml:"-"`
	PasswordHash string `yaml:"password_hash,omitempty"`
}

type Swap struct {
	Enabled bool   `yaml:"enabled"`
	Size    string `yaml:"size"`
}

type Bootloader struct {
	Kind          string   `yaml:"kind"` // systemd-boot, grub, efistub, limine
	LimineKernels []string `yaml:"limine_kernels"`
}

type System struct {
	Hostname           string     `yaml:"hostname"`
	Timezone           string     `yaml:"timezone"`
	NTP                bool       `yaml:"ntp"`
	Kernels            []string   `yaml:"kernels"`
	Network            string     `yaml:"network"` // networkmanager, copy_iso, none
	AudioServer        string     `yaml:"audio"`
	Experience         Experience `yaml:"experience"`
	AdditionalPackages []string   `yaml:"additional_packages"`
	RootPassword       string     `yaml:"root_password,omitempty"`
	RootConfirm        string     `yaml:"-"`
	RootPasswordHash   string     `yaml:"root_password_hash,omitempty"`
	Debug              bool       `yaml:"debug"`
}

// Experience - выбранные категории рабочего окружения
type Experience struct {
	Mode           string              `yaml:"mode"` // desktop, minimal, server, xorg
	DesktopEnvs    []string            `yaml:"desktop_envs"`
	PackageSets    map[string][]string `yaml:"package_overrides"`
	LoginManager   string              `yaml:"login_manager"`
	Servers        []string            `yaml:"servers"`
	Xorg           bool                `yaml:"xorg"`
	GraphicsDriver string              `yaml:"graphics_driver"`
}

type User struct {
	Name         string `yaml:"name"`
	Password     string `yaml:"password,omitempty"`
	Confirm      string `yaml:"-"`
	PasswordHash string `yaml:"password_hash,omitempty"`
	Sudo         bool   `yaml:"sudo"`
}
