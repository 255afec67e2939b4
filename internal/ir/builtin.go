package ir

import "sort"

// System ids of the official runtime systems.
const (
	SystemStatus     = "Status"
	SystemActionGate = "ActionGate"
	SystemMovement   = "Movement"
)

// System class paths used by the official manifest and the runtime catalog.
const (
	ClassStatusSystem     = "/Script/OmniRuntime.OmniStatusSystem"
	ClassActionGateSystem = "/Script/OmniRuntime.OmniActionGateSystem"
	ClassMovementSystem   = "/Script/OmniRuntime.OmniMovementSystem"
)

// Profile setting keys read by the official systems.
const (
	SettingActionProfile   = "ActionProfileAssetPath"
	SettingStatusProfile   = "StatusProfileAssetPath"
	SettingMovementProfile = "MovementProfileAssetPath"
)

// DefaultManifestClass is the builtin manifest used when no source is given.
const DefaultManifestClass = "Omni.Official"

var builtinManifests = map[string]func() *Manifest{
	DefaultManifestClass: officialManifest,
}

// BuiltinManifest returns a fresh copy of the builtin manifest registered
// under class, or false if none is.
func BuiltinManifest(class string) (*Manifest, bool) {
	build, ok := builtinManifests[class]
	if !ok {
		return nil, false
	}
	return build(), true
}

// BuiltinManifestClasses lists the registered builtin classes, sorted.
func BuiltinManifestClasses() []string {
	classes := make([]string, 0, len(builtinManifests))
	for c := range builtinManifests {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	return classes
}

// DefaultProfilePath returns the object path of the default profile asset
// for one of the official systems.
func DefaultProfilePath(system string) string {
	folder := system
	if system == SystemActionGate {
		folder = "Action"
	}
	asset := "DA_Omni_" + folder + "Profile_Default"
	return "/Game/Omni/Data/" + folder + "/" + asset + "." + asset
}

func officialManifest() *Manifest {
	return &Manifest{
		Name:         DefaultManifestClass,
		Namespace:    "Omni.Official",
		BuildVersion: 1,
		Systems: []SystemEntry{
			{
				SystemID:    SystemStatus,
				SystemClass: ClassStatusSystem,
				Enabled:     true,
				Settings:    map[string]string{SettingStatusProfile: DefaultProfilePath(SystemStatus)},
			},
			{
				SystemID:     SystemActionGate,
				SystemClass:  ClassActionGateSystem,
				Enabled:      true,
				Dependencies: []string{SystemStatus},
				Settings:     map[string]string{SettingActionProfile: DefaultProfilePath(SystemActionGate)},
			},
			{
				SystemID:     SystemMovement,
				SystemClass:  ClassMovementSystem,
				Enabled:      true,
				Dependencies: []string{SystemActionGate, SystemStatus},
				Settings:     map[string]string{SettingMovementProfile: DefaultProfilePath(SystemMovement)},
			},
		},
	}
}
