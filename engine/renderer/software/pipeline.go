package software

import (
	"fmt"

	"github.com/spaghettifunk/novus/engine/renderer/rhi"
)

type rootSignature struct {
	name string
	desc rhi.RootSignatureDesc
}

func (r *rootSignature) Name() string { return r.name }
func (r *rootSignature) SetName(name string) { r.name = name }
func (r *rootSignature) Desc() rhi.RootSignatureDesc { return r.desc }

type pipelineState struct {
	name string
	desc rhi.PipelineStateDesc
	root *rootSignature
}

func (p *pipelineState) Name() string { return p.name }
func (p *pipelineState) SetName(name string) { p.name = name }
func (p *pipelineState) Desc() rhi.PipelineStateDesc { return p.desc }

func (d *Device) CreateRootSignature(desc rhi.RootSignatureDesc) (rhi.RootSignature, error) {
	for i, p := range desc.Parameters {
		switch p.Type {
		case rhi.RootParameterCBV:
		case rhi.RootParameterDescriptorTable:
			if p.NumDescriptors == 0 {
				return nil, fmt.Errorf("%w: %s parameter %d is an empty table", rhi.ErrRootSignature, desc.Name, i)
			}
		default:
			return nil, fmt.Errorf("%w: %s parameter %d has type %d", rhi.ErrRootSignature, desc.Name, i, p.Type)
		}
	}
	params := append([]rhi.RootParameter(nil), desc.Parameters...)
	desc.Parameters = params
	return &rootSignature{name: desc.Name, desc: desc}, nil
}

func (d *Device) CreatePipelineState(desc rhi.PipelineStateDesc) (rhi.PipelineState, error) {
	root, ok := desc.RootSignature.(*rootSignature)
	if !ok || root == nil {
		return nil, fmt.Errorf("%w: %s needs a root signature from this device", rhi.ErrPipelineCreation, desc.Name)
	}
	if len(desc.VS) == 0 {
		return nil, fmt.Errorf("%w: %s has no vertex shader", rhi.ErrPipelineCreation, desc.Name)
	}
	if desc.Topology == rhi.PrimitiveTopologyUndefined {
		return nil, fmt.Errorf("%w: %s has no topology", rhi.ErrPipelineCreation, desc.Name)
	}
	if desc.DepthEnabled && desc.DSVFormat != rhi.FormatD32Float {
		return nil, fmt.Errorf("%w: %s enables depth without a D32 depth format", rhi.ErrPipelineCreation, desc.Name)
	}
	hasPosition := false
	for _, el := range desc.InputLayout {
		if el.Semantic == "POSITION" && el.Format == rhi.FormatR32G32B32Float {
			hasPosition = true
		}
	}
	if !hasPosition {
		return nil, fmt.Errorf("%w: %s input layout has no float3 POSITION", rhi.ErrPipelineCreation, desc.Name)
	}
	return &pipelineState{name: desc.Name, desc: desc, root: root}, nil
}
