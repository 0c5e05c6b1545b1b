// Package vulkan probes for a Vulkan implementation. It creates an instance
// and lists the adapters it finds, but does not yet implement rhi.Device;
// the renderer falls back to the software backend.
package vulkan

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/novus/engine/core"
	"github.com/spaghettifunk/novus/engine/renderer/rhi"
)

type Options struct {
	Logger  *core.Logger
	AppName string
	// Extensions are the instance extensions the window system needs.
	Extensions []string
}

// Adapter describes one physical device.
type Adapter struct {
	Name          string
	Type          string
	APIVersion    string
	DriverVersion string
}

// NewDevice probes the Vulkan loader and reports the adapters it finds.
// It always fails: the error wraps rhi.ErrBackendNotImplemented when the
// probe succeeded and rhi.ErrDeviceCreation when it did not.
func NewDevice(opts Options) (rhi.Device, error) {
	logger := core.OrNop(opts.Logger).With("backend", "vulkan")
	adapters, err := Probe(opts)
	if err != nil {
		logger.Error("vulkan probe failed", "err", err)
		return nil, err
	}
	for _, a := range adapters {
		logger.Info("vulkan adapter", "name", a.Name, "type", a.Type, "api", a.APIVersion, "driver", a.DriverVersion)
	}
	return nil, fmt.Errorf("%w: vulkan (%d adapters found)", rhi.ErrBackendNotImplemented, len(adapters))
}

// Probe creates a throwaway instance and enumerates physical devices. glfw
// must already be initialized.
func Probe(opts Options) ([]Adapter, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, fmt.Errorf("%w: GetInstanceProcAddress is nil", rhi.ErrDeviceCreation)
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("%w: %w", rhi.ErrDeviceCreation, err)
	}

	name := opts.AppName
	if name == "" {
		name = "Novus"
	}
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(name),
		PEngineName:        VulkanSafeString("Novus Engine"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := append([]string{"VK_KHR_surface"}, opts.Extensions...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &instance); res != vk.Success {
		return nil, fmt.Errorf("%w: creating instance: %s", rhi.ErrDeviceCreation, VulkanResultString(res))
	}
	defer vk.DestroyInstance(instance, nil)
	if err := vk.InitInstance(instance); err != nil {
		return nil, fmt.Errorf("%w: %w", rhi.ErrDeviceCreation, err)
	}

	var count uint32
	if res := vk.EnumeratePhysicalDevices(instance, &count, nil); res != vk.Success {
		return nil, fmt.Errorf("%w: enumerating adapters: %s", rhi.ErrDeviceCreation, VulkanResultString(res))
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: no devices which support Vulkan were found", rhi.ErrDeviceCreation)
	}
	devices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(instance, &count, devices); res != vk.Success {
		return nil, fmt.Errorf("%w: enumerating adapters: %s", rhi.ErrDeviceCreation, VulkanResultString(res))
	}

	adapters := make([]Adapter, 0, count)
	for _, pd := range devices[:count] {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &props)
		props.Deref()
		adapters = append(adapters, Adapter{
			Name:          string(props.DeviceName[:FindFirstZeroInByteArray(props.DeviceName[:])]),
			Type:          adapterType(props.DeviceType),
			APIVersion:    versionString(props.ApiVersion),
			DriverVersion: versionString(props.DriverVersion),
		})
	}
	return adapters, nil
}

func adapterType(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "integrated"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "discrete"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "cpu"
	}
	return "unknown"
}

func versionString(v uint32) string {
	ver := vk.Version(v)
	return fmt.Sprintf("%d.%d.%d", ver.Major(), ver.Minor(), ver.Patch())
}
