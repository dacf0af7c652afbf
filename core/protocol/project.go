package protocol

import "provisioner/core/provision"

// Project returns the part of po serialized under scope.
func Project(scope ReturnData, po *provision.ProvisionedObject) *provision.ProvisionedObject {
	return object(scope, po)
}

func object(scope ReturnData, po *provision.ProvisionedObject) *provision.ProvisionedObject {
	if po == nil || scope == ScopeIdentifier {
		return nil
	}
	c := po.Clone()
	c.Identifier = identifier(scope, c.Identifier)
	for i := range c.References {
		c.References[i].Target = identifier(scope, c.References[i].Target)
	}
	return c
}

func identifier(scope ReturnData, id provision.Identifier) provision.Identifier {
	if scope != ScopeEverything {
		id.Container = nil
	}
	return id
}

func source(scope ReturnData, ref provision.EntityRef) *provision.EntityRef {
	if scope != ScopeEverything {
		return nil
	}
	return &ref
}

func operations(scope ReturnData, ops []provision.MutationOp) []provision.MutationOp {
	out := make([]provision.MutationOp, 0, len(ops))
	for _, op := range ops {
		p := provision.MutationOp{
			Kind:       op.Kind,
			Identifier: identifier(scope, op.Identifier),
			Recursive:  op.Recursive,
		}
		if scope != ScopeIdentifier {
			p.Object = object(scope, op.Object)
			p.AttributeDeltas = op.AttributeDeltas
			p.ReferenceDeltas = make([]provision.ReferenceDelta, 0, len(op.ReferenceDeltas))
			for _, d := range op.ReferenceDeltas {
				p.ReferenceDeltas = append(p.ReferenceDeltas, provision.ReferenceDelta{
					Name:   d.Name,
					Add:    identifiers(scope, d.Add),
					Remove: identifiers(scope, d.Remove),
				})
			}
			if len(p.ReferenceDeltas) == 0 {
				p.ReferenceDeltas = nil
			}
		}
		out = append(out, p)
	}
	return out
}

func identifiers(scope ReturnData, ids []provision.Identifier) []provision.Identifier {
	if len(ids) == 0 {
		return nil
	}
	out := make([]provision.Identifier, len(ids))
	for i, id := range ids {
		out[i] = identifier(scope, id)
	}
	return out
}
